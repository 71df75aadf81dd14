package file

type Config struct {
	Name            string
	Path            string  // MPEG-TS file on disk
	SegmentDuration float64 // length of one natural segment in seconds
}

func (c Config) withDefaultValues() Config {
	if c.SegmentDuration <= 0 {
		c.SegmentDuration = 10
	}
	return c
}
