package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogEventSplitsLines(t *testing.T) {
	var got []string
	w := LogEvent(func(message string) {
		got = append(got, message)
	})

	n, err := w.Write([]byte("frame=1\n\n  frame=2  \r\n"))

	assert.NoError(t, err)
	assert.Equal(t, 22, n)
	assert.Equal(t, []string{"frame=1", "frame=2"}, got)
}
