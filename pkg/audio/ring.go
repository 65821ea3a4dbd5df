// Package audio holds small PCM utilities shared by the capture path.
package audio

import (
	"sync"
	"time"
)

// Ring is a fixed-window circular buffer of 16-bit mono PCM. The
// capture path feeds it continuously so the moments just before an
// utterance is requested are not lost: a clip seeded with the ring's
// contents keeps the speech onset intact.
type Ring struct {
	mu    sync.Mutex
	data  []byte
	start int
	size  int
}

// NewRing creates a ring holding the last window of audio at the given
// sample rate.
func NewRing(sampleRate int, window time.Duration) *Ring {
	capacity := 2 * sampleRate * int(window) / int(time.Second)
	if capacity < 2 {
		capacity = 2
	}
	return &Ring{data: make([]byte, capacity)}
}

// Write appends pcm, overwriting the oldest audio once the window is
// full.
func (r *Ring) Write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(pcm) >= len(r.data) {
		copy(r.data, pcm[len(pcm)-len(r.data):])
		r.start = 0
		r.size = len(r.data)
		return
	}

	end := (r.start + r.size) % len(r.data)
	n := copy(r.data[end:], pcm)
	copy(r.data, pcm[n:])

	r.size += len(pcm)
	if r.size > len(r.data) {
		r.start = (r.start + r.size - len(r.data)) % len(r.data)
		r.size = len(r.data)
	}
}

// Snapshot returns the buffered audio in chronological order without
// consuming it.
func (r *Ring) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	out := make([]byte, r.size)
	n := copy(out, r.data[r.start:])
	if n < r.size {
		copy(out[n:], r.data[:r.size-n])
	}
	return out
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.size = 0
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
