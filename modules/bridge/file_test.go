package bridge

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/go-hlsbridge/internal/tstest"
	"github.com/m1k1o/go-hlsbridge/pkg/media"
	"github.com/m1k1o/go-hlsbridge/pkg/media/file"
)

func TestFileStream(t *testing.T) {
	// 25 seconds, two PCRs per second each followed by one payload packet
	data := tstest.Stream(0, 25, 2, 1)

	p := filepath.Join(t.TempDir(), "movie.ts")
	require.NoError(t, os.WriteFile(p, data, 0o644))

	registry := media.NewRegistry()
	registry.Add(file.New(&file.Config{Name: "movie", Path: p, SegmentDuration: 10}))
	defer registry.Close()

	m := New("", &Config{Registry: registry, StaticDir: t.TempDir(), SegmentDuration: 10})

	rec := get(m, "/movie.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "#EXTINF:10,"))

	segment := 10 * 2 * 2 * tstest.PacketSize
	tests := []struct {
		offset string
		body   []byte
	}{
		{"0", data[:segment]},
		{"10", data[segment : 2*segment]},
		{"20", data[2*segment:]},
	}

	var total int
	for _, tt := range tests {
		rec := get(m, "/movie?segment="+tt.offset)
		require.Equal(t, http.StatusOK, rec.Code, tt.offset)
		assert.Equal(t, strconv.Itoa(len(tt.body)), rec.Header().Get("Content-Length"))
		assert.Equal(t, tt.body, rec.Body.Bytes())
		total += rec.Body.Len()
	}

	// consecutive segments cover the file exactly once
	assert.Equal(t, len(data), total)

	rec = get(m, "/movie?segment=30")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
