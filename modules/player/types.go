package player

// Streams lists the stream names known to the server.
type Streams interface {
	Names() []string
}

type Config struct {
	// offered on the index page
	Streams Streams
	// prefix of manifest urls, relative to the server root
	StreamPrefix string
	// hls or dash manifest extension
	ManifestExt string
}

func (c Config) withDefaultValues() Config {
	if c.StreamPrefix == "" {
		c.StreamPrefix = "/"
	}
	if c.ManifestExt == "" {
		c.ManifestExt = "m3u8"
	}
	return c
}
