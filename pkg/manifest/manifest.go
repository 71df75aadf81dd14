// Package manifest renders HLS playlists and MPEG-DASH descriptions of a
// continuous stream cut into fixed-length segments.
package manifest

import (
	"errors"
	"strings"

	"github.com/m1k1o/go-hlsbridge/pkg/media"
)

const (
	HLSContentType  = "application/vnd.apple.mpegurl"
	DASHContentType = "application/dash+xml"
)

var (
	ErrNoSubsession           = errors.New("no subsession")
	ErrNonPositiveDuration    = errors.New("non-positive duration")
	ErrInvalidSegmentDuration = errors.New("segment duration must be positive")
)

const lineBreak = "\r\n"

// Params describe the stream a manifest is generated for.
type Params struct {
	Duration        float64 // seconds currently available
	Start           uint32  // current time offset, first segment number
	SegmentDuration uint32  // seconds per segment
	URL             string  // segment URL without query
}

// FromSubsession captures the current state of a subsession.
func FromSubsession(sub media.Subsession, segmentDuration uint32, url string) (Params, error) {
	if sub == nil {
		return Params{}, ErrNoSubsession
	}

	return Params{
		Duration:        sub.Duration(),
		Start:           sub.CurrentTimeOffset(),
		SegmentDuration: segmentDuration,
		URL:             url,
	}, nil
}

func (p Params) validate() error {
	if p.SegmentDuration == 0 {
		return ErrInvalidSegmentDuration
	}
	if p.Duration <= 0 {
		return ErrNonPositiveDuration
	}
	return nil
}

func join(lines []string) string {
	return strings.Join(lines, lineBreak) + lineBreak
}
