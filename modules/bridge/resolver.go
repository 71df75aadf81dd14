package bridge

import (
	"fmt"
	"io"
	"sync"

	"github.com/m1k1o/go-hlsbridge/pkg/media"
	"github.com/m1k1o/go-hlsbridge/pkg/pipeline"
)

// tokenSource releases the stream token together with the source.
type tokenSource struct {
	io.Reader
	source  media.Source
	release func()
	once    sync.Once
}

func (s *tokenSource) Close() error {
	var err error
	s.once.Do(func() {
		err = s.source.Close()
		s.release()
	})
	return err
}

// resolveSegment seeks the named stream to offset and returns the segment
// length together with a source producing exactly that many bytes.
func (m *ModuleCtx) resolveSegment(conn *pipeline.Conn, name string, offset uint32) (uint64, media.Source, error) {
	session, ok := m.conf().Registry.LookupSession(name)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrNoSession, name)
	}

	sub := session.Subsession()
	if sub == nil {
		return 0, nil, fmt.Errorf("%w: %s has no subsession", ErrNoSession, name)
	}

	sessionID := conn.NextSessionID()
	logger := m.logger.With().
		Str("conn", conn.ID()).
		Uint32("session", sessionID).
		Str("stream", name).
		Uint32("offset", offset).
		Logger()

	token, err := sub.AcquireStreamToken(sessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("unable to acquire stream token")
		return 0, nil, fmt.Errorf("%w: %v", ErrUnknownSegmentLength, err)
	}

	// zero duration is one natural segment from offset
	numBytes, err := sub.Seek(sessionID, token, float64(offset), 0)
	if err != nil || numBytes == 0 {
		sub.ReleaseStreamToken(token)

		if err != nil {
			logger.Warn().Err(err).Msg("seek failed")
			return 0, nil, fmt.Errorf("%w: %v", ErrUnknownSegmentLength, err)
		}
		return 0, nil, ErrUnknownSegmentLength
	}

	source, err := sub.Source(token)
	if err != nil {
		sub.ReleaseStreamToken(token)

		logger.Warn().Err(err).Msg("unable to get source")
		return 0, nil, fmt.Errorf("%w: %v", ErrUnknownSegmentLength, err)
	}

	logger.Debug().Uint64("bytes", numBytes).Msg("segment resolved")

	return numBytes, &tokenSource{
		Reader:  io.LimitReader(source, int64(numBytes)),
		source:  source,
		release: func() { sub.ReleaseStreamToken(token) },
	}, nil
}
