// Package pipeline owns the response of a client connection: the header, the
// sink draining a byte source into the socket and the teardown of both.
package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrHeaderSent = errors.New("header already sent")
	ErrClosed     = errors.New("connection closed")
	ErrBusy       = errors.New("connection busy")
)

// Conn is the response state of one client socket. Handler frames hold a
// reference between Enter and Leave, an attached sink holds another. The
// connection is destroyed once nothing references it and it is no longer
// active, that is its response finished or its socket closed.
type Conn struct {
	id     string
	server string
	logger zerolog.Logger

	sessionID atomic.Uint32

	mu         sync.Mutex
	w          http.ResponseWriter
	headerSent bool
	sink       *Sink
	refs       int
	frames     int
	active     bool
	destroyed  bool

	onDestroy []func()
}

// NewConn creates an active connection. server is sent as the Server header.
func NewConn(server string) *Conn {
	id := uuid.NewString()

	return &Conn{
		id:     id,
		server: server,
		logger: log.With().Str("module", "pipeline").Str("conn", id).Logger(),
		active: true,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Logger() zerolog.Logger {
	return c.logger
}

// NextSessionID returns a new id for a streaming request on this connection.
func (c *Conn) NextSessionID() uint32 {
	return c.sessionID.Add(1)
}

// OnDestroy registers a function called once the connection is destroyed.
func (c *Conn) OnDestroy(event func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onDestroy = append(c.onDestroy, event)
}

// Enter starts a request-handling frame writing to w. Frames do not
// overlap, a socket multiplexing requests must give each its own Conn.
func (c *Conn) Enter(w http.ResponseWriter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrClosed
	}

	if c.frames > 0 {
		return ErrBusy
	}

	c.frames++
	c.refs++
	c.w = w
	c.headerSent = false
	return nil
}

// Leave ends a request-handling frame.
func (c *Conn) Leave() {
	c.mu.Lock()
	c.frames--
	c.mu.Unlock()

	c.release()
}

// Close marks the socket as gone.
func (c *Conn) Close() {
	c.mu.Lock()
	c.active = false
	destroy := c.refs == 0 && !c.destroyed
	c.mu.Unlock()

	if destroy {
		c.destroy()
	}
}

func (c *Conn) HeaderSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.headerSent
}

// SendHeader writes a 200 response header. The body that follows must be
// exactly contentLength bytes.
func (c *Conn) SendHeader(contentType string, contentLength uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		return ErrClosed
	}

	if c.headerSent {
		return ErrHeaderSent
	}

	h := c.w.Header()
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if c.server != "" {
		h.Set("Server", c.server)
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatUint(contentLength, 10))
	h.Set("Connection", "close")

	c.w.WriteHeader(http.StatusOK)
	if flusher, ok := c.w.(http.Flusher); ok {
		flusher.Flush()
	}

	c.headerSent = true
	return nil
}

// StreamSource tears down the attached sink, if any, and then starts a new
// one playing source. A nil source only tears down.
func (c *Conn) StreamSource(source io.ReadCloser) (*Sink, error) {
	c.mu.Lock()
	old := c.sink
	c.sink = nil
	c.mu.Unlock()

	// the old sink releases its reference through afterStreaming
	teardown(old)

	if source == nil {
		return nil, nil
	}

	c.mu.Lock()
	if c.destroyed || c.w == nil {
		c.mu.Unlock()
		_ = source.Close()
		return nil, ErrClosed
	}

	sink := NewSink(c.w)
	c.sink = sink
	c.refs++
	c.mu.Unlock()

	sink.Start(source, c.afterStreaming)
	return sink, nil
}

// Wait blocks until the attached sink finishes or ctx ends, then tears the
// sink down. Either way the response is over and the connection is no longer
// active.
func (c *Conn) Wait(ctx context.Context) error {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()

	if sink == nil {
		return nil
	}

	var err error
	select {
	case <-sink.Done():
		err = sink.Err()
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	if c.sink == sink {
		c.sink = nil
	}
	c.active = false
	c.mu.Unlock()

	teardown(sink)
	return err
}

// afterStreaming runs on the sink goroutine once the sink stopped, whether
// the source was exhausted, the client went away or the sink was replaced.
func (c *Conn) afterStreaming(sink *Sink) {
	c.mu.Lock()
	attached := c.sink == sink
	if attached {
		c.sink = nil
		// one response per connection
		c.active = false
	}
	c.mu.Unlock()

	if attached {
		teardown(sink)
	}

	if err := sink.Err(); err != nil && !errors.Is(err, ErrStopped) {
		c.logger.Debug().Err(err).Int64("written", sink.Written()).Msg("streaming interrupted")
	} else {
		c.logger.Debug().Int64("written", sink.Written()).Msg("streaming finished")
	}

	c.release()
}

func (c *Conn) release() {
	c.mu.Lock()
	c.refs--
	destroy := c.refs <= 0 && !c.active && !c.destroyed
	c.mu.Unlock()

	if destroy {
		c.destroy()
	}
}

func (c *Conn) destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	c.destroyed = true
	sink := c.sink
	c.sink = nil
	c.w = nil
	events := c.onDestroy
	c.mu.Unlock()

	teardown(sink)

	c.logger.Debug().Msg("connection destroyed")

	for _, event := range events {
		event()
	}
}

type connKey struct{}

func NewContext(ctx context.Context, c *Conn) context.Context {
	return context.WithValue(ctx, connKey{}, c)
}

// FromContext returns the connection stored in ctx, or nil.
func FromContext(ctx context.Context) *Conn {
	c, _ := ctx.Value(connKey{}).(*Conn)
	return c
}
