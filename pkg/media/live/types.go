package live

import (
	"os/exec"
	"time"
)

type Config struct {
	Name            string
	SegmentDuration float64       // length of one natural segment in seconds
	Window          time.Duration // how much of the stream is kept in memory
	CleanupPeriod   time.Duration // how often should be cleanup called
	IdleTimeout     time.Duration // how long can the ingest run without any request
}

func (c Config) withDefaultValues() Config {
	if c.SegmentDuration <= 0 {
		c.SegmentDuration = 10
	}
	if c.Window == 0 {
		c.Window = 60 * time.Second
	}
	if c.CleanupPeriod == 0 {
		c.CleanupPeriod = 4 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// CmdFactory creates the command writing MPEG-TS to its stdout.
type CmdFactory func() *exec.Cmd

// ProfileCmd runs a profile executable with the stream source as its only argument.
func ProfileCmd(profilePath, source string) CmdFactory {
	return func() *exec.Cmd {
		return exec.Command(profilePath, source)
	}
}
