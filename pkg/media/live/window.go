package live

import "sync"

// window keeps the most recent bytes of a stream, addressed by their offset
// from the start of the stream.
type window struct {
	mu     sync.RWMutex
	chunks [][]byte
	base   int64 // offset of chunks[0][0]
	size   int64
}

func (w *window) Write(p []byte) (n int, err error) {
	// copy chunk
	dst := make([]byte, len(p))
	n = copy(dst, p)

	w.mu.Lock()
	w.chunks = append(w.chunks, dst)
	w.size += int64(n)
	w.mu.Unlock()

	return
}

func (w *window) Base() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.base
}

func (w *window) End() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.base + w.size
}

// Slice copies [start, end) out of the window.
func (w *window) Slice(start, end int64) ([]byte, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if start < w.base || end > w.base+w.size || end <= start {
		return nil, false
	}

	out := make([]byte, 0, end-start)
	pos := w.base
	for _, chunk := range w.chunks {
		chunkEnd := pos + int64(len(chunk))
		if chunkEnd > start && pos < end {
			from, to := int64(0), int64(len(chunk))
			if start > pos {
				from = start - pos
			}
			if end < chunkEnd {
				to = end - pos
			}
			out = append(out, chunk[from:to]...)
		}
		if chunkEnd >= end {
			break
		}
		pos = chunkEnd
	}

	return out, true
}

// Trim drops whole chunks ending at or before offset and returns the new base.
func (w *window) Trim(offset int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := 0
	for ; i < len(w.chunks); i++ {
		chunkLen := int64(len(w.chunks[i]))
		if w.base+chunkLen > offset {
			break
		}
		w.base += chunkLen
		w.size -= chunkLen
	}

	if i > 0 {
		w.chunks = append([][]byte(nil), w.chunks[i:]...)
	}

	return w.base
}

func (w *window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chunks = nil
	w.base = 0
	w.size = 0
}
