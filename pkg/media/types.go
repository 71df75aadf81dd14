package media

import (
	"errors"
	"io"
)

var ErrUnknownToken = errors.New("unknown stream token")

// StreamToken identifies one negotiated delivery context of a subsession.
// Its content is private to the subsession that issued it.
type StreamToken any

// Source produces the bytes of a seeked stream.
type Source = io.ReadCloser

type Subsession interface {
	// Duration in seconds, non-positive when unknown or unbounded.
	Duration() float64
	// CurrentTimeOffset is the live position in seconds.
	CurrentTimeOffset() uint32

	AcquireStreamToken(sessionID uint32) (StreamToken, error)
	ReleaseStreamToken(token StreamToken)

	// Seek positions the stream at offsetSeconds and returns the number of
	// bytes available until offsetSeconds+durationSeconds. Zero duration
	// means one natural segment.
	Seek(sessionID uint32, token StreamToken, offsetSeconds, durationSeconds float64) (uint64, error)
	// Source returns the bytes selected by the last Seek on token. The
	// token is released once the source is no longer needed.
	Source(token StreamToken) (Source, error)
}

type Session interface {
	Name() string
	Subsession() Subsession
	Close() error
}

type Registry interface {
	LookupSession(name string) (Session, bool)
}
