// Package file serves an MPEG-TS file on disk as a seekable media session.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-hlsbridge/pkg/media"
	"github.com/m1k1o/go-hlsbridge/pkg/media/tsindex"
)

type streamToken struct {
	sessionID uint32
	seeked    bool
	start     int64
	end       int64
}

type SessionCtx struct {
	logger zerolog.Logger
	config Config

	index   *tsindex.Index
	modTime time.Time
	size    int64
	indexMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func New(config *Config) *SessionCtx {
	ctx, cancel := context.WithCancel(context.Background())

	return &SessionCtx{
		logger: log.With().Str("module", "media").Str("submodule", "file").Str("session", config.Name).Logger(),
		config: config.withDefaultValues(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *SessionCtx) Name() string {
	return s.config.Name
}

func (s *SessionCtx) Subsession() media.Subsession {
	return s
}

func (s *SessionCtx) Close() error {
	s.cancel()
	return nil
}

// loadIndex indexes the file, again whenever it changed on disk.
func (s *SessionCtx) loadIndex() (*tsindex.Index, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	stat, err := os.Stat(s.config.Path)
	if err != nil {
		return nil, err
	}

	if s.index != nil && stat.ModTime().Equal(s.modTime) && stat.Size() == s.size {
		return s.index, nil
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	start := time.Now()
	index, err := tsindex.Build(s.ctx, f)
	if err != nil {
		return nil, fmt.Errorf("unable to index %s: %w", s.config.Path, err)
	}

	s.index = index
	s.modTime = stat.ModTime()
	s.size = stat.Size()

	s.logger.Info().
		Float64("duration", index.End()).
		Int64("size", index.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("file indexed")

	return index, nil
}

func (s *SessionCtx) Duration() float64 {
	index, err := s.loadIndex()
	if err != nil {
		s.logger.Warn().Err(err).Msg("unable to load index")
		return 0
	}

	return index.End() - index.Start()
}

func (s *SessionCtx) CurrentTimeOffset() uint32 {
	index, err := s.loadIndex()
	if err != nil {
		s.logger.Warn().Err(err).Msg("unable to load index")
		return 0
	}

	return uint32(math.Ceil(index.Start()))
}

func (s *SessionCtx) AcquireStreamToken(sessionID uint32) (media.StreamToken, error) {
	return &streamToken{sessionID: sessionID}, nil
}

func (s *SessionCtx) ReleaseStreamToken(token media.StreamToken) {}

func (s *SessionCtx) Seek(sessionID uint32, token media.StreamToken, offsetSeconds, durationSeconds float64) (uint64, error) {
	tok, ok := token.(*streamToken)
	if !ok || tok.sessionID != sessionID {
		return 0, media.ErrUnknownToken
	}

	index, err := s.loadIndex()
	if err != nil {
		return 0, err
	}

	if durationSeconds <= 0 {
		durationSeconds = s.config.SegmentDuration
	}

	start, end, ok := index.Range(offsetSeconds, durationSeconds)
	if !ok {
		tok.seeked = false
		return 0, nil
	}

	tok.seeked = true
	tok.start, tok.end = start, end
	return uint64(end - start), nil
}

type sectionSource struct {
	*io.SectionReader
	f *os.File
}

func (s *sectionSource) Close() error {
	return s.f.Close()
}

func (s *SessionCtx) Source(token media.StreamToken) (media.Source, error) {
	tok, ok := token.(*streamToken)
	if !ok {
		return nil, media.ErrUnknownToken
	}

	if !tok.seeked {
		return nil, errors.New("stream token was not seeked")
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		return nil, err
	}

	return &sectionSource{
		SectionReader: io.NewSectionReader(f, tok.start, tok.end-tok.start),
		f:             f,
	}, nil
}
