package manifest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DASH renders a dynamic MPD with a single representation whose segment
// numbers are time offsets in seconds.
func DASH(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	var url strings.Builder
	if err := xml.EscapeText(&url, []byte(p.URL)); err != nil {
		return "", err
	}

	mpd := []string{
		"<?xml version='1.0' encoding='UTF-8'?>",
		fmt.Sprintf("<MPD type='dynamic' xmlns='urn:mpeg:DASH:schema:MPD:2011' profiles='urn:mpeg:dash:profile:full:2011' minimumUpdatePeriod='PT%dS' minBufferTime='PT%dS'>", p.SegmentDuration, p.SegmentDuration),
		"<Period start='PT0S'><AdaptationSet segmentAlignment='true'><Representation mimeType='video/mp2t' codecs='' >",
		fmt.Sprintf("<SegmentTemplate duration='%d' media='%s?segment=$Number$' startNumber='%d' />", p.SegmentDuration, url.String(), p.Start),
		"</Representation></AdaptationSet></Period>",
		"</MPD>",
	}

	return join(mpd), nil
}
