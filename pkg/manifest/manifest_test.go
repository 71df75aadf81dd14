package manifest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/m1k1o/go-hlsbridge/pkg/media"
)

func TestHLS(t *testing.T) {
	t.Run("cam1 example", func(t *testing.T) {
		playlist, err := HLS(Params{Duration: 30, Start: 100, SegmentDuration: 10, URL: "cam1"})
		if err != nil {
			t.Fatalf("HLS() error = %v", err)
		}

		want := "#EXTM3U\r\n" +
			"#EXT-X-ALLOW-CACHE:NO\r\n" +
			"#EXT-X-MEDIA-SEQUENCE:100\r\n" +
			"#EXT-X-TARGETDURATION:10\r\n" +
			"#EXTINF:10,\r\n" +
			"cam1?segment=100\r\n" +
			"#EXTINF:10,\r\n" +
			"cam1?segment=110\r\n" +
			"#EXTINF:10,\r\n" +
			"cam1?segment=120\r\n"
		if playlist != want {
			t.Errorf("HLS() = %q, want %q", playlist, want)
		}
	})

	t.Run("entry count and segment numbers", func(t *testing.T) {
		durations := []float64{0.5, 1, 9.99, 10, 10.01, 29, 30, 31, 3600}
		segments := []uint32{1, 2, 4, 10}
		starts := []uint32{0, 7, 100}

		segmentRe := regexp.MustCompile(`^live\?segment=(\d+)$`)

		for _, d := range durations {
			for _, s := range segments {
				for _, start := range starts {
					name := fmt.Sprintf("D=%v S=%d start=%d", d, s, start)

					playlist, err := HLS(Params{Duration: d, Start: start, SegmentDuration: s, URL: "live"})
					if err != nil {
						t.Fatalf("%s: HLS() error = %v", name, err)
					}

					lines := strings.Split(strings.TrimSuffix(playlist, "\r\n"), "\r\n")
					entries := lines[4:]

					want := int(math.Ceil(d / float64(s)))
					if len(entries) != 2*want {
						t.Errorf("%s: got %d entries, want %d", name, len(entries)/2, want)
						continue
					}

					for i := 0; i < want; i++ {
						if entries[2*i] != fmt.Sprintf("#EXTINF:%d,", s) {
							t.Errorf("%s: entry %d = %q", name, i, entries[2*i])
						}

						m := segmentRe.FindStringSubmatch(entries[2*i+1])
						if m == nil {
							t.Errorf("%s: url %d = %q", name, i, entries[2*i+1])
							continue
						}

						got, _ := strconv.ParseUint(m[1], 10, 64)
						if got != uint64(start)+uint64(i)*uint64(s) {
							t.Errorf("%s: url %d segment = %d, want %d", name, i, got, uint64(start)+uint64(i)*uint64(s))
						}
					}
				}
			}
		}
	})
}

func TestDASH(t *testing.T) {
	mpd, err := DASH(Params{Duration: 30, Start: 100, SegmentDuration: 10, URL: "cam1"})
	if err != nil {
		t.Fatalf("DASH() error = %v", err)
	}

	for _, want := range []string{
		"<MPD type='dynamic'",
		"minimumUpdatePeriod='PT10S'",
		"minBufferTime='PT10S'",
		"<SegmentTemplate duration='10' media='cam1?segment=$Number$' startNumber='100' />",
		"</MPD>\r\n",
	} {
		if !strings.Contains(mpd, want) {
			t.Errorf("DASH() = %q, missing %q", mpd, want)
		}
	}

	t.Run("url is escaped", func(t *testing.T) {
		mpd, err := DASH(Params{Duration: 1, SegmentDuration: 1, URL: "a&b'c"})
		if err != nil {
			t.Fatalf("DASH() error = %v", err)
		}
		if !strings.Contains(mpd, "media='a&amp;b&#39;c?segment=$Number$'") {
			t.Errorf("DASH() = %q, url not escaped", mpd)
		}
	})
}

func TestInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		err    error
	}{
		{"zero duration", Params{Duration: 0, SegmentDuration: 10}, ErrNonPositiveDuration},
		{"negative duration", Params{Duration: -1, SegmentDuration: 10}, ErrNonPositiveDuration},
		{"zero segment duration", Params{Duration: 30}, ErrInvalidSegmentDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HLS(tt.params); !errors.Is(err, tt.err) {
				t.Errorf("HLS() error = %v, want %v", err, tt.err)
			}
			if _, err := DASH(tt.params); !errors.Is(err, tt.err) {
				t.Errorf("DASH() error = %v, want %v", err, tt.err)
			}
		})
	}
}

type subsession struct {
	media.Subsession
	duration float64
	offset   uint32
}

func (s *subsession) Duration() float64         { return s.duration }
func (s *subsession) CurrentTimeOffset() uint32 { return s.offset }

func TestFromSubsession(t *testing.T) {
	p, err := FromSubsession(&subsession{duration: 30, offset: 100}, 10, "cam1")
	if err != nil {
		t.Fatalf("FromSubsession() error = %v", err)
	}

	want := Params{Duration: 30, Start: 100, SegmentDuration: 10, URL: "cam1"}
	if p != want {
		t.Errorf("FromSubsession() = %+v, want %+v", p, want)
	}

	if _, err := FromSubsession(nil, 10, "cam1"); !errors.Is(err, ErrNoSubsession) {
		t.Errorf("FromSubsession(nil) error = %v, want %v", err, ErrNoSubsession)
	}
}
