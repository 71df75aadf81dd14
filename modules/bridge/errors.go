package bridge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/m1k1o/go-hlsbridge/pkg/manifest"
	"github.com/m1k1o/go-hlsbridge/pkg/pipeline"
)

var (
	ErrNoSession            = errors.New("no session")
	ErrNonPositiveDuration  = manifest.ErrNonPositiveDuration
	ErrMalformedQuery       = errors.New("malformed query")
	ErrUnknownSegmentLength = errors.New("unknown segment length")
	ErrFileUnavailable      = errors.New("file unavailable")
)

func reason(err error) string {
	for _, known := range []error{
		ErrNoSession,
		ErrNonPositiveDuration,
		ErrMalformedQuery,
		ErrUnknownSegmentLength,
		ErrFileUnavailable,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "other"
}

// NotSupported terminates a request that could not be served. Nothing is
// written once a header went out.
func (m *ModuleCtx) NotSupported(conn *pipeline.Conn, w http.ResponseWriter, err error) {
	why := reason(err)
	m.conf().Metrics.IncNotSupported(why)

	if conn.HeaderSent() {
		m.logger.Warn().Err(err).Str("conn", conn.ID()).Msg("response already started")
		return
	}

	code := http.StatusNotFound
	if errors.Is(err, ErrMalformedQuery) {
		code = http.StatusBadRequest
	}

	m.logger.Debug().Err(err).Str("conn", conn.ID()).Int("code", code).Msg("not supported")
	http.Error(w, fmt.Sprintf("%d %s", code, why), code)
}
