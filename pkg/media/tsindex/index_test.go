package tsindex

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/go-hlsbridge/internal/tstest"
)

func TestBuild(t *testing.T) {
	// 30 seconds, 4 PCRs per second, 3 payload packets after each PCR
	data := tstest.Stream(0, 30, 4, 3)

	ix, err := Build(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), ix.Size())
	assert.Equal(t, 0.0, ix.Start())
	assert.InDelta(t, 29.75, ix.End(), 0.0001)
	assert.Len(t, ix.Marks(), 120)
}

func TestRange(t *testing.T) {
	data := tstest.Stream(0, 30, 4, 3)
	ix, err := Build(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	// each quarter second spans 4 packets
	quarter := int64(4 * PacketSize)

	tests := []struct {
		name     string
		offset   float64
		duration float64
		start    int64
		end      int64
		ok       bool
	}{
		{
			name:     "first segment",
			offset:   0,
			duration: 10,
			start:    0,
			end:      40 * quarter,
			ok:       true,
		},
		{
			name:     "middle segment",
			offset:   10,
			duration: 10,
			start:    40 * quarter,
			end:      80 * quarter,
			ok:       true,
		},
		{
			name:     "last segment runs to the end",
			offset:   20,
			duration: 10,
			start:    80 * quarter,
			end:      int64(len(data)),
			ok:       true,
		},
		{
			name:     "offset between marks rounds up",
			offset:   10.1,
			duration: 10,
			start:    41 * quarter,
			end:      81 * quarter,
			ok:       true,
		},
		{
			name:     "offset past the end",
			offset:   31,
			duration: 10,
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ix.Range(tt.offset, tt.duration)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, start)
				assert.Equal(t, tt.end, end)
			}
		})
	}
}

func TestFeedContinuesOffsets(t *testing.T) {
	first := tstest.Stream(0, 5, 1, 1)
	second := tstest.Stream(5*90000, 5, 1, 1)

	ix := New()
	require.NoError(t, ix.Feed(context.Background(), bytes.NewReader(first)))
	require.NoError(t, ix.Feed(context.Background(), bytes.NewReader(second)))

	marks := ix.Marks()
	require.Len(t, marks, 10)
	assert.Equal(t, int64(len(first)), marks[5].Offset)
	assert.Equal(t, 5.0, marks[5].Time)
}

func TestPCRWrap(t *testing.T) {
	var data []byte
	base := pcrWrap - 90000
	data = append(data, tstest.PCRPacket(tstest.PCRPID, base)...)
	data = append(data, tstest.PCRPacket(tstest.PCRPID, 0)...)
	data = append(data, tstest.PCRPacket(tstest.PCRPID, 90000)...)

	ix, err := Build(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	marks := ix.Marks()
	require.Len(t, marks, 3)
	assert.Equal(t, 1.0, marks[1].Time)
	assert.Equal(t, 2.0, marks[2].Time)
}

func TestTrim(t *testing.T) {
	data := tstest.Stream(0, 10, 1, 0)
	ix, err := Build(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	ix.Trim(3 * PacketSize)

	assert.Equal(t, 3.0, ix.Start())
	assert.Equal(t, 9.0, ix.End())
	_, _, ok := ix.Range(1, 1)
	assert.False(t, ok, "trimmed range")

	start, _, ok := ix.Range(2.5, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(3*PacketSize), start)
}
