// Package live keeps a rolling window of a continuous MPEG-TS stream produced
// by an external command and serves it as a seekable media session.
package live

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/m1k1o/go-hlsbridge/internal/utils"
	"github.com/m1k1o/go-hlsbridge/pkg/media"
	"github.com/m1k1o/go-hlsbridge/pkg/media/tsindex"
)

type streamToken struct {
	sessionID uint32
	index     *tsindex.Index
	window    *window
	data      []byte
}

type SessionCtx struct {
	logger     zerolog.Logger
	config     Config
	cmdFactory CmdFactory

	mu          sync.Mutex
	cmd         *exec.Cmd
	closed      bool
	lastRequest time.Time
	shutdown    chan struct{}

	index  *tsindex.Index
	window *window

	events struct {
		onStart  func()
		onCmdLog func(message string)
		onStop   func(err error)
	}
}

func New(cmdFactory CmdFactory, config *Config) *SessionCtx {
	return &SessionCtx{
		logger:     log.With().Str("module", "media").Str("submodule", "live").Str("session", config.Name).Logger(),
		config:     config.withDefaultValues(),
		cmdFactory: cmdFactory,
		index:      tsindex.New(),
		window:     &window{},
	}
}

func (m *SessionCtx) Name() string {
	return m.config.Name
}

func (m *SessionCtx) Subsession() media.Subsession {
	return m
}

func (m *SessionCtx) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

func (m *SessionCtx) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("session is closed")
	}

	if m.cmd != nil {
		return errors.New("has already started")
	}

	m.logger.Debug().Msg("performing start")

	cmd := m.cmdFactory()
	if m.events.onCmdLog != nil {
		cmd.Stderr = utils.LogEvent(m.events.onCmdLog)
	} else {
		cmd.Stderr = utils.LogWriter(m.logger)
	}

	// create a new process group
	cmd.SysProcAttr = configureAsProcessGroup()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	index, win := tsindex.New(), &window{}

	m.cmd = cmd
	m.index, m.window = index, win
	m.lastRequest = time.Now()
	m.shutdown = make(chan struct{})

	if m.events.onStart != nil {
		m.events.onStart()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	// read stream on stdout, wait for program to exit afterwards
	g.Go(func() error {
		defer cancel()

		if err := m.consume(ctx, index, win, stdout); err != nil {
			m.logger.Err(err).Msg("stream read failed")
		}
		return cmd.Wait()
	})

	// periodic cleanup
	shutdown := m.shutdown
	g.Go(func() error {
		ticker := time.NewTicker(m.config.CleanupPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.Cleanup()
			}
		}
	})

	go func() {
		err := g.Wait()

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			m.logger.Warn().Int("exit-status", exitErr.ExitCode()).Msg("the program has exited with an exit code != 0")
		} else if err != nil {
			m.logger.Err(err).Msg("the program has exited with an error")
		} else {
			m.logger.Info().Msg("the program has successfully exited")
		}

		m.mu.Lock()
		close(shutdown)
		m.cmd = nil
		m.mu.Unlock()

		if m.events.onStop != nil {
			m.events.onStop(err)
		}
	}()

	return nil
}

func (m *SessionCtx) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil && m.cmd.Process != nil {
		m.logger.Debug().Msg("performing stop")

		err := killProcessGroup(m.cmd)
		m.logger.Err(err).Msg("killing process group")
	}
}

func (m *SessionCtx) Cleanup() {
	m.mu.Lock()
	diff := time.Since(m.lastRequest)
	stop := diff > m.config.IdleTimeout
	m.mu.Unlock()

	m.logger.Debug().
		Dur("diff", diff).
		Bool("stop", stop).
		Msg("performing cleanup")

	if stop {
		m.Stop()
	}
}

// Shutdown returns a channel closed when the running program exits.
func (m *SessionCtx) Shutdown() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shutdown
}

func (m *SessionCtx) OnStart(event func()) {
	m.events.onStart = event
}

func (m *SessionCtx) OnCmdLog(event func(message string)) {
	m.events.onCmdLog = event
}

func (m *SessionCtx) OnStop(event func(err error)) {
	m.events.onStop = event
}

//
// ingest
//

type ingestWriter struct {
	m      *SessionCtx
	index  *tsindex.Index
	window *window
}

func (w *ingestWriter) Write(p []byte) (int, error) {
	n, err := w.window.Write(p)
	w.m.evict(w.index, w.window)
	return n, err
}

// consume indexes r while keeping its bytes in the window.
func (m *SessionCtx) consume(ctx context.Context, index *tsindex.Index, win *window, r io.Reader) error {
	err := index.Feed(ctx, io.TeeReader(r, &ingestWriter{m: m, index: index, window: win}))
	m.evict(index, win)
	return err
}

// evict drops everything older than the configured window.
func (m *SessionCtx) evict(index *tsindex.Index, win *window) {
	cut := index.End() - m.config.Window.Seconds()
	if cut <= index.Start() {
		return
	}

	offset, ok := index.OffsetAt(cut)
	if !ok {
		return
	}

	base := win.Trim(offset)
	index.Trim(base)
}

//
// subsession
//

func (m *SessionCtx) touch() (*tsindex.Index, *window) {
	m.mu.Lock()
	m.lastRequest = time.Now()
	running, closed := m.cmd != nil, m.closed
	m.mu.Unlock()

	if !running && !closed && m.cmdFactory != nil {
		if err := m.Start(); err != nil {
			m.logger.Warn().Err(err).Msg("stream could not be started")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.index, m.window
}

func (m *SessionCtx) Duration() float64 {
	index, _ := m.touch()

	start := math.Ceil(index.Start())
	duration := index.End() - start
	if duration < 0 {
		return 0
	}
	return duration
}

func (m *SessionCtx) CurrentTimeOffset() uint32 {
	index, _ := m.touch()

	return uint32(math.Ceil(index.Start()))
}

func (m *SessionCtx) AcquireStreamToken(sessionID uint32) (media.StreamToken, error) {
	index, win := m.touch()

	return &streamToken{
		sessionID: sessionID,
		index:     index,
		window:    win,
	}, nil
}

func (m *SessionCtx) ReleaseStreamToken(token media.StreamToken) {
	if tok, ok := token.(*streamToken); ok {
		tok.data = nil
	}
}

func (m *SessionCtx) Seek(sessionID uint32, token media.StreamToken, offsetSeconds, durationSeconds float64) (uint64, error) {
	tok, ok := token.(*streamToken)
	if !ok || tok.sessionID != sessionID {
		return 0, media.ErrUnknownToken
	}

	if durationSeconds <= 0 {
		durationSeconds = m.config.SegmentDuration
	}

	tok.data = nil

	start, end, ok := tok.index.Range(offsetSeconds, durationSeconds)
	if !ok {
		return 0, nil
	}

	// snapshot, the window moves on while the segment is being sent
	data, ok := tok.window.Slice(start, end)
	if !ok {
		m.logger.Debug().Float64("offset", offsetSeconds).Msg("segment already left the window")
		return 0, nil
	}

	tok.data = data
	return uint64(len(data)), nil
}

func (m *SessionCtx) Source(token media.StreamToken) (media.Source, error) {
	tok, ok := token.(*streamToken)
	if !ok {
		return nil, media.ErrUnknownToken
	}

	if tok.data == nil {
		return nil, errors.New("stream token was not seeked")
	}

	data := tok.data
	tok.data = nil
	return io.NopCloser(bytes.NewReader(data)), nil
}
