// Package session implements the call session: the state machine that
// carries one conversation between a user and an echo from dialing to
// hang-up, coordinating speech capture, response generation, playback,
// and the persisted call record.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echoes-ai/echocall/pkg/capture"
	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/llm"
	"github.com/echoes-ai/echocall/pkg/respond"
)

// ErrAlreadyStarted is returned by Start on a session that has left
// Idle.
var ErrAlreadyStarted = errors.New("session already started")

// Capturer produces finalized user utterances. capture.Controller
// implements it.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
	SetMicEnabled(enabled bool)
}

// Responder produces spoken replies. respond.Generator implements it.
type Responder interface {
	Respond(ctx context.Context, echo history.Echo, turns []llm.Message, utterance string) (*respond.Result, error)
	Greet(ctx context.Context, echo history.Echo, callerName string) (*respond.Result, error)
}

// Player plays synthesized clips. playback.Controller implements it.
type Player interface {
	Play(ctx context.Context, url string) error
	Stop()
	SetMuted(muted bool)
}

// Config holds session timing parameters.
type Config struct {
	// ConnectDelay is how long the Connecting phase lasts.
	ConnectDelay time.Duration

	// CaptureRetryDelay is the pause after a failed or rejected
	// capture attempt before listening resumes.
	CaptureRetryDelay time.Duration

	// CallerName is the user's display name, spoken in the greeting.
	CallerName string

	// Clock defaults to the wall clock.
	Clock Clock
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ConnectDelay:      2 * time.Second,
		CaptureRetryDelay: 250 * time.Millisecond,
	}
}

// Controller is one call session. All exported methods are safe for
// concurrent use. A controller is single-use: once Ended it never
// leaves that state.
type Controller struct {
	id     string
	userID string
	echoID string
	cfg    Config

	store    *history.Store
	capture  Capturer
	respond  Responder
	playback Player

	mu          sync.Mutex
	state       State
	echo        history.Echo
	elapsed     int
	micEnabled  bool
	speakerOn   bool
	videoOn     bool
	transcript  []TranscriptEntry
	pendingTurn bool
	generation  uint64
	cancel      context.CancelFunc

	recordOnce sync.Once
	wg         sync.WaitGroup

	onState      func(State)
	onTranscript func(TranscriptEntry)
	onAudio      func(url string)
	onError      func(err error)
}

// New creates a session for userID calling echoID. The echo itself is
// resolved in Start.
func New(userID, echoID string, store *history.Store, cap Capturer, gen Responder, player Player, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = 2 * time.Second
	}
	if cfg.CaptureRetryDelay == 0 {
		cfg.CaptureRetryDelay = 250 * time.Millisecond
	}

	return &Controller{
		id:         "call_" + uuid.New().String()[:12],
		userID:     userID,
		echoID:     echoID,
		cfg:        cfg,
		store:      store,
		capture:    cap,
		respond:    gen,
		playback:   player,
		state:      StateIdle,
		micEnabled: true,
		speakerOn:  true,
		videoOn:    true,
	}
}

// ID returns the session id, assigned at creation.
func (c *Controller) ID() string {
	return c.id
}

// OnStateChange registers a state observer. Set before Start;
// callbacks fire outside the controller's lock.
func (c *Controller) OnStateChange(fn func(State)) { c.onState = fn }

// OnTranscript registers a transcript observer.
func (c *Controller) OnTranscript(fn func(TranscriptEntry)) { c.onTranscript = fn }

// OnAudio registers an observer for clips as they start playing.
func (c *Controller) OnAudio(fn func(url string)) { c.onAudio = fn }

// OnError registers an observer for non-fatal session errors.
func (c *Controller) OnError(fn func(err error)) { c.onError = fn }

// Start resolves the echo and begins the call. An unknown or foreign
// echo id fails with history.ErrEchoNotFound and the session stays
// Idle: no record will ever be written for it.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	echo, err := c.store.EchoByID(c.userID, c.echoID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	c.echo = echo
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	c.notifyState(StateConnecting)
	log.Printf("[session %s] connecting to echo %s (%s)", c.id, echo.ID, echo.Name)

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Wait blocks until the session's goroutines have exited.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-c.cfg.Clock.After(c.cfg.ConnectDelay):
	}
	if c.ended() {
		return
	}

	c.wg.Add(1)
	go c.tickElapsed(ctx)

	c.greet(ctx)
	c.loop(ctx)
}

// tickElapsed counts call seconds while the session is active.
func (c *Controller) tickElapsed(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.cfg.Clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.mu.Lock()
			if c.state == StateEnded {
				c.mu.Unlock()
				return
			}
			c.elapsed++
			c.mu.Unlock()
		}
	}
}

func (c *Controller) greet(ctx context.Context) {
	if !c.transition(StateConnecting, StateGreeting) {
		return
	}

	gen := c.currentGeneration()
	res, err := c.respond.Greet(ctx, c.echo, c.cfg.CallerName)
	if c.stale(gen) {
		return
	}
	if err != nil {
		// A failed greeting is a failed turn, not a failed call.
		c.reportError(err)
		c.transition(StateGreeting, StateListening)
		return
	}

	c.appendTranscript(SpeakerEcho, res.Text)
	c.play(ctx, res.AudioURL)
	c.transition(StateGreeting, StateListening)
}

// loop is the steady-state Listening/Thinking/Speaking cycle.
func (c *Controller) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil || c.ended() {
			return
		}

		text, err := c.capture.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, capture.ErrMicDisabled) {
				c.reportError(err)
			}
			// Pause before the next attempt so a broken or muted
			// capture path does not spin.
			select {
			case <-ctx.Done():
				return
			case <-c.cfg.Clock.After(c.cfg.CaptureRetryDelay):
			}
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			// Silence or a cancelled attempt: keep listening.
			continue
		}

		c.mu.Lock()
		if c.state != StateListening || c.pendingTurn {
			// Speech landed outside the listening phase: drop it.
			c.mu.Unlock()
			continue
		}
		c.pendingTurn = true
		gen := c.generation
		turns := c.turnsLocked()
		c.mu.Unlock()

		c.appendTranscript(SpeakerUser, text)
		c.transition(StateListening, StateThinking)

		res, err := c.respond.Respond(ctx, c.echo, turns, text)

		c.mu.Lock()
		c.pendingTurn = false
		discarded := c.generation != gen || c.state == StateEnded
		c.mu.Unlock()
		if discarded {
			// The call ended while this turn was in flight.
			return
		}

		if err != nil {
			c.reportError(err)
			c.transition(StateThinking, StateListening)
			continue
		}

		c.appendTranscript(SpeakerEcho, res.Text)
		c.transition(StateThinking, StateSpeaking)
		c.play(ctx, res.AudioURL)
		c.transition(StateSpeaking, StateListening)
	}
}

func (c *Controller) play(ctx context.Context, url string) {
	if c.onAudio != nil {
		c.onAudio(url)
	}
	if err := c.playback.Play(ctx, url); err != nil && ctx.Err() == nil {
		// Playback failure ends the clip early; the turn itself is
		// complete.
		c.reportError(err)
	}
}

// EndCall terminates the session from any state and persists exactly
// one call record. Safe to call repeatedly and from any goroutine.
func (c *Controller) EndCall() {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	started := c.state != StateIdle
	c.state = StateEnded
	c.generation++
	rec := c.recordLocked()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.playback != nil {
		c.playback.Stop()
	}
	c.notifyState(StateEnded)

	if !started {
		// Never connected, nothing to record.
		return
	}

	c.recordOnce.Do(func() {
		if err := c.store.AppendCall(c.userID, rec); err != nil {
			// The call still ended; the record is what was lost.
			log.Printf("[session %s] persist call record: %v", c.id, err)
			c.reportError(fmt.Errorf("persist call record: %w", err))
			return
		}
		log.Printf("[session %s] ended after %s", c.id, rec.Duration)
	})
}

// ToggleMic flips the microphone and returns the new setting. While
// off, no capture starts.
func (c *Controller) ToggleMic() bool {
	c.mu.Lock()
	c.micEnabled = !c.micEnabled
	enabled := c.micEnabled
	c.mu.Unlock()

	c.capture.SetMicEnabled(enabled)
	return enabled
}

// ToggleSpeaker flips audio output and returns the new setting. Muting
// applies to the clip currently playing.
func (c *Controller) ToggleSpeaker() bool {
	c.mu.Lock()
	c.speakerOn = !c.speakerOn
	on := c.speakerOn
	c.mu.Unlock()

	c.playback.SetMuted(!on)
	return on
}

// ToggleVideo flips the video flag and returns the new setting. Video
// is presentation-only: it never affects the audio pipeline.
func (c *Controller) ToggleVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoOn = !c.videoOn
	return c.videoOn
}

// Snapshot returns a point-in-time copy of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	transcript := make([]TranscriptEntry, len(c.transcript))
	copy(transcript, c.transcript)

	return Snapshot{
		ID:             c.id,
		State:          c.state,
		EchoID:         c.echoID,
		EchoName:       c.echo.Name,
		ElapsedSeconds: c.elapsed,
		MicEnabled:     c.micEnabled,
		SpeakerEnabled: c.speakerOn,
		VideoEnabled:   c.videoOn,
		Transcript:     transcript,
	}
}

func (c *Controller) recordLocked() history.CallRecord {
	return history.CallRecord{
		ID:              c.id,
		EchoID:          c.echoID,
		EchoName:        c.echo.Name,
		Duration:        history.FormatDuration(c.elapsed),
		Date:            c.cfg.Clock.Now().Format(time.RFC3339),
		PreviewImageURL: c.echo.ImageURL,
	}
}

// transition moves from one state to another if the session is still
// in the expected state, and reports whether it did.
func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()

	c.notifyState(to)
	return true
}

func (c *Controller) appendTranscript(speaker Speaker, text string) {
	entry := TranscriptEntry{Speaker: speaker, Text: text}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.transcript = append(c.transcript, entry)
	c.mu.Unlock()

	if c.onTranscript != nil {
		c.onTranscript(entry)
	}
}

// turnsLocked renders the transcript as generation history. The
// greeting line is included: the echo said it.
func (c *Controller) turnsLocked() []llm.Message {
	turns := make([]llm.Message, 0, len(c.transcript))
	for _, entry := range c.transcript {
		role := llm.RoleUser
		if entry.Speaker == SpeakerEcho {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Message{Role: role, Text: entry.Text})
	}
	return turns
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// stale reports whether the session moved on (ended) since gen was
// captured.
func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen || c.state == StateEnded
}

func (c *Controller) ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateEnded
}

func (c *Controller) notifyState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) reportError(err error) {
	log.Printf("[session %s] %v", c.id, err)
	if c.onError != nil {
		c.onError(err)
	}
}
