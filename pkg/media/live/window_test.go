package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	w := &window{}
	w.Write([]byte("abcd"))
	w.Write([]byte("efgh"))
	w.Write([]byte("ijkl"))

	tests := []struct {
		name  string
		start int64
		end   int64
		want  string
		ok    bool
	}{
		{"within chunk", 1, 3, "bc", true},
		{"across chunks", 2, 10, "cdefghij", true},
		{"everything", 0, 12, "abcdefghijkl", true},
		{"past end", 8, 13, "", false},
		{"empty", 4, 4, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.Slice(tt.start, tt.end)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, string(got))
			}
		})
	}
}

func TestWindowTrim(t *testing.T) {
	w := &window{}
	w.Write([]byte("abcd"))
	w.Write([]byte("efgh"))
	w.Write([]byte("ijkl"))

	// only whole chunks are dropped
	assert.Equal(t, int64(4), w.Trim(6))
	assert.Equal(t, int64(4), w.Base())
	assert.Equal(t, int64(12), w.End())

	_, ok := w.Slice(2, 6)
	assert.False(t, ok)

	got, ok := w.Slice(4, 6)
	assert.True(t, ok)
	assert.Equal(t, "ef", string(got))

	w.Reset()
	assert.Equal(t, int64(0), w.End())
}

func TestWindowSliceIsCopy(t *testing.T) {
	w := &window{}
	p := []byte("abcd")
	w.Write(p)
	p[0] = 'x'

	got, _ := w.Slice(0, 4)
	got[1] = 'y'

	again, _ := w.Slice(0, 4)
	assert.Equal(t, "abcd", string(again))
}
