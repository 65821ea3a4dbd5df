// Package playback plays synthesized clips through a single audio
// sink. One clip plays at a time; starting a new clip preempts the
// previous one.
package playback

import "sync"

// Sink consumes PCM audio frames (16-bit little-endian).
type Sink interface {
	// Write queues one frame for output.
	Write(pcm []byte) error

	// Reset drops any queued audio.
	Reset()
}

// BufferSink collects written frames in memory. Used in tests and by
// the gateway, where the client plays the clip itself.
type BufferSink struct {
	mu     sync.Mutex
	frames [][]byte
	resets int
}

var _ Sink = (*BufferSink)(nil)

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) Write(pcm []byte) error {
	frame := make([]byte, len(pcm))
	copy(frame, pcm)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *BufferSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	s.resets++
}

// Frames returns a copy of the frames written since the last reset.
func (s *BufferSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Bytes returns the written frames concatenated.
func (s *BufferSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, f := range s.frames {
		out = append(out, f...)
	}
	return out
}

// ResetCount returns how many times Reset was called.
func (s *BufferSink) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}
