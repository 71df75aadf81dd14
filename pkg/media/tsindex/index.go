// Package tsindex maps stream time to byte offsets in an MPEG-TS stream using
// the program clock references carried by its packets.
package tsindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/asticode/go-astits"
)

const PacketSize = 188

// 33-bit PCR base ticking at 90kHz.
const (
	pcrClock = 90000
	pcrWrap  = int64(1) << 33
)

const defaultMarkInterval = 0.1

type Mark struct {
	Time   float64 // seconds since the first PCR
	Offset int64   // byte offset of the packet carrying the PCR
}

type Index struct {
	mu sync.RWMutex

	marks        []Mark
	packets      int64
	markInterval float64

	pcrPID   uint16
	hasPCR   bool
	firstPCR int64
	lastPCR  int64
	wraps    int64
}

func New() *Index {
	return &Index{
		markInterval: defaultMarkInterval,
	}
}

// Build indexes a complete stream.
func Build(ctx context.Context, r io.Reader) (*Index, error) {
	ix := New()
	if err := ix.Feed(ctx, r); err != nil {
		return nil, err
	}
	return ix, nil
}

// Feed reads packets from r until it is exhausted and indexes them. Offsets
// continue from the packets already indexed.
func (ix *Index) Feed(ctx context.Context, r io.Reader) error {
	dmx := astits.NewDemuxer(ctx, r, astits.DemuxerOptPacketSize(PacketSize))

	for {
		p, err := dmx.NextPacket()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("unable to read packet: %w", err)
		}

		ix.AddPacket(p)
	}
}

// AddPacket accounts for one packet following the previously added ones.
func (ix *Index) AddPacket(p *astits.Packet) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	offset := ix.packets * PacketSize
	ix.packets++

	if p.AdaptationField == nil || !p.AdaptationField.HasPCR || p.AdaptationField.PCR == nil {
		return
	}

	// follow the clock of the first PID carrying one
	if !ix.hasPCR {
		ix.hasPCR = true
		ix.pcrPID = p.Header.PID
		ix.firstPCR = p.AdaptationField.PCR.Base
		ix.lastPCR = ix.firstPCR
	} else if p.Header.PID != ix.pcrPID {
		return
	}

	base := p.AdaptationField.PCR.Base
	if base < ix.lastPCR && ix.lastPCR-base > pcrWrap/2 {
		ix.wraps++
	}
	ix.lastPCR = base

	t := float64(base+ix.wraps*pcrWrap-ix.firstPCR) / pcrClock
	if t < 0 {
		// clock jumped backwards, keep time monotonic
		return
	}

	if n := len(ix.marks); n > 0 && t-ix.marks[n-1].Time < ix.markInterval {
		return
	}

	ix.marks = append(ix.marks, Mark{Time: t, Offset: offset})
}

// Size is the number of indexed bytes.
func (ix *Index) Size() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.packets * PacketSize
}

// Start is the time of the earliest retained mark.
func (ix *Index) Start() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.marks) == 0 {
		return 0
	}
	return ix.marks[0].Time
}

// End is the time of the latest mark.
func (ix *Index) End() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.marks) == 0 {
		return 0
	}
	return ix.marks[len(ix.marks)-1].Time
}

func (ix *Index) Marks() []Mark {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	marks := make([]Mark, len(ix.marks))
	copy(marks, ix.marks)
	return marks
}

// Range returns the byte range covering [offset, offset+duration). The range
// starts at the first mark at or after offset and ends at the first mark at
// or after offset+duration, or at the end of the indexed data. A range whose
// first mark lies beyond offset+duration is not available.
func (ix *Index) Range(offset, duration float64) (start, end int64, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	i := ix.search(offset)
	if i == len(ix.marks) {
		return 0, 0, false
	}
	if duration > 0 && ix.marks[i].Time >= offset+duration {
		return 0, 0, false
	}
	start = ix.marks[i].Offset

	end = ix.packets * PacketSize
	if j := ix.search(offset + duration); j < len(ix.marks) && j > i {
		end = ix.marks[j].Offset
	}

	if end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// OffsetAt returns the offset of the first mark at or after t.
func (ix *Index) OffsetAt(t float64) (int64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	i := ix.search(t)
	if i == len(ix.marks) {
		return 0, false
	}
	return ix.marks[i].Offset, true
}

// Trim drops marks pointing before offset.
func (ix *Index) Trim(offset int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	i := sort.Search(len(ix.marks), func(i int) bool {
		return ix.marks[i].Offset >= offset
	})
	ix.marks = append(ix.marks[:0], ix.marks[i:]...)
}

func (ix *Index) search(t float64) int {
	return sort.Search(len(ix.marks), func(i int) bool {
		return ix.marks[i].Time >= t
	})
}
