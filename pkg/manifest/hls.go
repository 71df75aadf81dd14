package manifest

import (
	"fmt"
)

// HLS renders one entry per segment while the segment start is within the
// available duration, that is ceil(Duration/SegmentDuration) entries.
func HLS(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	// playlist prefix
	playlist := []string{
		"#EXTM3U",
		"#EXT-X-ALLOW-CACHE:NO",
		fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d", p.Start),
		fmt.Sprintf("#EXT-X-TARGETDURATION:%d", p.SegmentDuration),
	}

	// playlist segments
	step := uint64(p.SegmentDuration)
	for slice := uint64(0); float64(slice*step) < p.Duration; slice++ {
		playlist = append(playlist,
			fmt.Sprintf("#EXTINF:%d,", p.SegmentDuration),
			fmt.Sprintf("%s?segment=%d", p.URL, uint64(p.Start)+slice*step),
		)
	}

	return join(playlist), nil
}
