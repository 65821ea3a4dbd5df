package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcRecognizer func(ctx context.Context) (string, error)

func (f funcRecognizer) Recognize(ctx context.Context) (string, error) {
	return f(ctx)
}

func TestCaptureReturnsTranscript(t *testing.T) {
	c := NewController("test", funcRecognizer(func(ctx context.Context) (string, error) {
		return "  hello there  ", nil
	}))

	text, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestCaptureMicDisabled(t *testing.T) {
	called := false
	c := NewController("test", funcRecognizer(func(ctx context.Context) (string, error) {
		called = true
		return "hi", nil
	}))

	c.SetMicEnabled(false)
	_, err := c.Capture(context.Background())
	assert.True(t, errors.Is(err, ErrMicDisabled))
	assert.False(t, called, "recognizer must not run while mic is off")

	c.SetMicEnabled(true)
	text, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestCaptureSingleInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := NewController("test", funcRecognizer(func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "first", nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		text, err := c.Capture(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "first", text)
	}()

	<-started
	_, err := c.Capture(context.Background())
	assert.True(t, errors.Is(err, ErrCaptureBusy))

	close(release)
	wg.Wait()
}

func TestDisablingMicAbortsInFlightCapture(t *testing.T) {
	p := NewPushRecognizer()
	c := NewController("test", p)

	done := make(chan string, 1)
	go func() {
		text, err := c.Capture(context.Background())
		assert.NoError(t, err)
		done <- text
	}()

	// Wait for the capture to be in flight, then cut the mic.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.busy
	}, time.Second, time.Millisecond)

	c.SetMicEnabled(false)

	select {
	case text := <-done:
		assert.Equal(t, "", text, "aborted capture finalizes as silence")
	case <-time.After(time.Second):
		t.Fatal("capture did not abort")
	}
}

func TestCaptureCancelYieldsEmptyTranscript(t *testing.T) {
	c := NewController("test", funcRecognizer(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	text, err := c.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestCaptureUnavailablePropagates(t *testing.T) {
	c := NewController("test", funcRecognizer(func(ctx context.Context) (string, error) {
		return "", ErrCaptureUnavailable
	}))

	_, err := c.Capture(context.Background())
	assert.True(t, errors.Is(err, ErrCaptureUnavailable))
}

func TestPushRecognizerDelivers(t *testing.T) {
	p := NewPushRecognizer()

	done := make(chan string, 1)
	go func() {
		text, err := p.Recognize(context.Background())
		assert.NoError(t, err)
		done <- text
	}()

	// Wait for the Recognize call to register.
	require.Eventually(t, func() bool {
		return p.Push("hello")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "hello", <-done)
}

func TestPushRecognizerDropsWithoutWaiter(t *testing.T) {
	p := NewPushRecognizer()
	assert.False(t, p.Push("nobody listening"))
}

func TestPushRecognizerCancel(t *testing.T) {
	p := NewPushRecognizer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Recognize(ctx)
	assert.Error(t, err)

	// The cancelled waiter no longer consumes pushes.
	assert.False(t, p.Push("late"))
}

func TestPCMToWAVHeader(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz mono
	wav := pcmToWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))
}

func TestPCMToFloat32(t *testing.T) {
	// Two samples: 0 and -32768.
	pcm := []byte{0x00, 0x00, 0x00, 0x80}
	samples := pcmToFloat32(pcm)

	require.Len(t, samples, 2)
	assert.Equal(t, float32(0), samples[0])
	assert.Equal(t, float32(-1), samples[1])
}
