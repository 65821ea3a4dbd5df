package playback

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/echoes-ai/echocall/pkg/trace"
)

// Error is a playback failure tied to a clip URL.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("playback of %s failed: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds playback pacing parameters.
type Config struct {
	SampleRate    int
	Channels      int
	FrameInterval time.Duration
}

// DefaultConfig returns the default playback configuration: 16kHz
// mono, 20ms frames.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		Channels:      1,
		FrameInterval: 20 * time.Millisecond,
	}
}

type clipState struct {
	stop chan struct{}
	done chan struct{}
}

// Controller feeds one clip at a time into its sink, frame by frame in
// real time. Muting replaces the live clip's remaining frames with
// silence without changing its timing.
type Controller struct {
	id       string
	cfg      Config
	sink     Sink
	resolver Resolver

	mu      sync.Mutex
	muted   bool
	current *clipState
}

func NewController(id string, cfg Config, sink Sink, resolver Resolver) *Controller {
	if cfg.SampleRate == 0 {
		cfg = DefaultConfig()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 20 * time.Millisecond
	}
	return &Controller{
		id:       id,
		cfg:      cfg,
		sink:     sink,
		resolver: resolver,
	}
}

// SetMuted flips the mute flag. It takes effect on the very next frame
// of whatever clip is loaded.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// Muted reports the mute flag.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Play resolves the clip and blocks until it finishes, is stopped, or
// fails. A clip already playing is preempted first. Stop and context
// cancellation are not errors.
func (c *Controller) Play(ctx context.Context, url string) error {
	ctx, span := trace.StartSpan(ctx, "playback.play")
	defer span.End()

	data, err := c.resolver.Resolve(ctx, url)
	if err != nil {
		playErr := &Error{URL: url, Err: err}
		trace.RecordError(span, playErr)
		return playErr
	}
	span.SetAttributes(trace.ClipAttrs(url, len(data))...)

	state := &clipState{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.current
	c.current = state
	c.mu.Unlock()

	if prev != nil {
		close(prev.stop)
		<-prev.done
	}

	defer func() {
		c.mu.Lock()
		if c.current == state {
			c.current = nil
		}
		c.mu.Unlock()
		close(state.done)
	}()

	frameBytes := c.cfg.SampleRate * c.cfg.Channels * 2 * int(c.cfg.FrameInterval) / int(time.Second)
	if frameBytes <= 0 {
		frameBytes = 640
	}

	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()

	silence := make([]byte, frameBytes)

	for offset := 0; offset < len(data); {
		select {
		case <-ctx.Done():
			c.sink.Reset()
			return nil
		case <-state.stop:
			c.sink.Reset()
			return nil
		case <-ticker.C:
			end := offset + frameBytes
			if end > len(data) {
				end = len(data)
			}
			frame := data[offset:end]
			if c.Muted() {
				frame = silence[:end-offset]
			}
			if err := c.sink.Write(frame); err != nil {
				return &Error{URL: url, Err: err}
			}
			offset = end
		}
	}

	log.Printf("[playback %s] clip %s finished (%d bytes)", c.id, url, len(data))
	return nil
}

// Stop halts the current clip. Safe to call when nothing is playing,
// and idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	state := c.current
	c.current = nil
	c.mu.Unlock()

	if state == nil {
		return
	}
	close(state.stop)
	<-state.done
}
