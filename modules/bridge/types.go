package bridge

import (
	"github.com/m1k1o/go-hlsbridge/internal/metrics"
	"github.com/m1k1o/go-hlsbridge/pkg/media"
)

type Config struct {
	Registry media.Registry
	Metrics  *metrics.Metrics

	StaticDir       string
	SegmentDuration uint32 // in seconds
	ServerName      string
}

func (c Config) withDefaultValues() Config {
	if c.Registry == nil {
		c.Registry = media.NewRegistry()
	}
	if c.StaticDir == "" {
		c.StaticDir = "."
	}
	if c.SegmentDuration == 0 {
		c.SegmentDuration = 10
	}
	if c.ServerName == "" {
		c.ServerName = "go-hlsbridge"
	}
	return c
}
