package utils

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogWriterCtx forwards every non-empty line written to it, typically the
// stderr of a child process.
type LogWriterCtx struct {
	event func(message string)
}

func LogWriter(l zerolog.Logger) *LogWriterCtx {
	return &LogWriterCtx{
		event: func(message string) {
			l.Warn().Msg(message)
		},
	}
}

func LogEvent(event func(message string)) *LogWriterCtx {
	return &LogWriterCtx{
		event: event,
	}
}

func (l LogWriterCtx) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			l.event(line)
		}
	}
	return len(p), nil
}
