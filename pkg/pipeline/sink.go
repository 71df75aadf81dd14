package pipeline

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

var ErrStopped = errors.New("sink stopped")

const copyBufferSize = 32 * 1024

// MemorySource serves b as a byte source.
func MemorySource(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

// Sink drains a source into a writer on its own goroutine, flushing after
// every chunk when the writer supports it.
type Sink struct {
	w       io.Writer
	flusher http.Flusher
	source  io.ReadCloser

	started   atomic.Bool
	written   atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

func NewSink(w io.Writer) *Sink {
	s := &Sink{
		w:    w,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if flusher, ok := w.(http.Flusher); ok {
		s.flusher = flusher
	}

	return s
}

// Start plays source until it is exhausted, the writer fails or the sink is
// stopped. onDone is called once afterwards, from the sink goroutine.
func (s *Sink) Start(source io.ReadCloser, onDone func(*Sink)) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.source = source

	go func() {
		s.err = s.play()
		close(s.done)

		if onDone != nil {
			onDone(s)
		}
	}()
}

func (s *Sink) play() error {
	buf := make([]byte, copyBufferSize)

	for {
		select {
		case <-s.stop:
			return ErrStopped
		default:
		}

		n, err := s.source.Read(buf)
		if n > 0 {
			if _, werr := s.w.Write(buf[:n]); werr != nil {
				return werr
			}

			s.written.Add(int64(n))

			if s.flusher != nil {
				s.flusher.Flush()
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Close waits until the sink goroutine has finished writing.
func (s *Sink) Close() {
	if !s.started.Load() {
		return
	}

	<-s.done
}

func (s *Sink) closeSource() {
	s.closeOnce.Do(func() {
		if s.source != nil {
			_ = s.source.Close()
		}
	})
}

// Done is closed when the sink stops writing.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Err is the reason the sink stopped, nil when the source was exhausted.
func (s *Sink) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Sink) Written() int64 {
	return s.written.Load()
}

// teardown stops the sink, closes it and then its source. Safe on nil and
// safe to call repeatedly.
func teardown(s *Sink) {
	if s == nil {
		return
	}

	s.Stop()
	s.Close()
	s.closeSource()
}
