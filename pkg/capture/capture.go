// Package capture turns one stretch of user speech into one finalized
// transcript. Silence, cancellation, and an unavailable recognizer all
// surface as an empty transcript so callers treat them uniformly.
package capture

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrCaptureUnavailable means the speech capture capability is absent
// or broken. Callers treat it like silence: no transcript this turn.
var ErrCaptureUnavailable = errors.New("speech capture unavailable")

// ErrCaptureBusy means a capture is already in flight.
var ErrCaptureBusy = errors.New("capture already in progress")

// ErrMicDisabled means the microphone toggle is off.
var ErrMicDisabled = errors.New("microphone is disabled")

// Recognizer produces one finalized utterance per call. It returns an
// empty string when no usable speech was produced.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Controller serializes capture attempts and enforces the microphone
// toggle. At most one capture runs at a time; attempts while the mic
// is off fail without touching the recognizer.
type Controller struct {
	id  string
	rec Recognizer

	micEnabled atomic.Bool

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
}

func NewController(id string, rec Recognizer) *Controller {
	c := &Controller{id: id, rec: rec}
	c.micEnabled.Store(true)
	return c
}

// SetMicEnabled flips the microphone gate. Disabling the mic aborts an
// in-flight capture; its attempt finalizes as silence.
func (c *Controller) SetMicEnabled(enabled bool) {
	c.micEnabled.Store(enabled)
	if enabled {
		return
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// MicEnabled reports the microphone gate.
func (c *Controller) MicEnabled() bool {
	return c.micEnabled.Load()
}

// Capture blocks until one utterance is finalized. The empty string
// with a nil error means silence or a cancelled attempt. Context
// cancellation also yields an empty transcript, not an error, so an
// ended call never sees a late result as a failure.
func (c *Controller) Capture(ctx context.Context) (string, error) {
	if !c.micEnabled.Load() {
		return "", ErrMicDisabled
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrCaptureBusy
	}
	c.busy = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	text, err := c.rec.Recognize(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", nil
		}
		log.Printf("[capture %s] recognize error: %v", c.id, err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}
