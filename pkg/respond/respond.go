// Package respond produces one spoken reply per user utterance: text
// generation followed by speech synthesis. The two stages run in
// sequence and either failure collapses into a single GenerationError,
// so a turn as a whole succeeds or fails.
package respond

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/llm"
	"github.com/echoes-ai/echocall/pkg/trace"
	"github.com/echoes-ai/echocall/pkg/tts"
)

// GenerationError is a turn failure. Stage names the step that failed:
// "generate" or "synthesize".
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("response %s failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Result is one finished reply: the text for the transcript and the
// URL of the synthesized clip.
type Result struct {
	Text     string
	AudioURL string
}

// Publisher stores a synthesized clip and returns a URL the playback
// controller can resolve.
type Publisher interface {
	Publish(audio []byte) (string, error)
}

// Generator turns utterances into spoken replies using a text provider
// and a synthesis provider.
type Generator struct {
	llm   llm.Provider
	tts   tts.Provider
	clips Publisher
}

func NewGenerator(llmProvider llm.Provider, ttsProvider tts.Provider, clips Publisher) *Generator {
	return &Generator{
		llm:   llmProvider,
		tts:   ttsProvider,
		clips: clips,
	}
}

// Respond generates and synthesizes the echo's reply to utterance.
// No automatic retry: a failed turn is reported once and dropped.
func (g *Generator) Respond(ctx context.Context, echo history.Echo, turns []llm.Message, utterance string) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "respond.turn")
	defer span.End()
	span.SetAttributes(trace.LLMAttrs(g.llm.Name(), "")...)

	text, err := g.llm.Generate(ctx, personaPrompt(echo), turns, utterance)
	if err != nil {
		turnErr := &GenerationError{Stage: "generate", Err: err}
		trace.RecordError(span, turnErr)
		return nil, turnErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &GenerationError{Stage: "generate", Err: fmt.Errorf("empty reply")}
	}

	audioURL, err := g.synthesize(ctx, echo, text)
	if err != nil {
		return nil, err
	}

	log.Printf("[respond] turn complete (%d chars)", len(text))
	return &Result{Text: text, AudioURL: audioURL}, nil
}

// Greet synthesizes the fixed greeting the echo opens every call with.
// The text is scripted, so only synthesis can fail.
func (g *Generator) Greet(ctx context.Context, echo history.Echo, callerName string) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "respond.greet")
	defer span.End()

	text := GreetingText(echo.Name, callerName)

	audioURL, err := g.synthesize(ctx, echo, text)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, AudioURL: audioURL}, nil
}

func (g *Generator) synthesize(ctx context.Context, echo history.Echo, text string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "respond.synthesize")
	defer span.End()
	span.SetAttributes(trace.TTSAttrs(g.tts.Name(), echo.VoiceID)...)

	resp, err := g.tts.Synthesize(ctx, &tts.SynthesizeRequest{
		Text:     text,
		Voice:    echo.VoiceID,
		Language: echo.Language,
	})
	if err != nil {
		synthErr := &GenerationError{Stage: "synthesize", Err: err}
		trace.RecordError(span, synthErr)
		return "", synthErr
	}

	audioURL, err := g.clips.Publish(resp.AudioData)
	if err != nil {
		return "", &GenerationError{Stage: "synthesize", Err: err}
	}
	span.SetAttributes(trace.ClipAttrs(audioURL, len(resp.AudioData))...)
	return audioURL, nil
}

// GreetingText builds the opening line of a call.
func GreetingText(echoName, callerName string) string {
	if callerName != "" {
		return fmt.Sprintf("Hello %s! It's wonderful to hear from you. I'm %s. How are you doing today?", callerName, echoName)
	}
	return fmt.Sprintf("Hello! It's wonderful to hear from you. I'm %s. How are you doing today?", echoName)
}

// personaPrompt builds the system prompt from the echo's definition.
func personaPrompt(echo history.Echo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", echo.Name)
	if desc := strings.TrimSpace(echo.Description); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	if echo.Language != "" {
		fmt.Fprintf(&b, " Reply in %s.", echo.Language)
	}
	b.WriteString(" You are on a voice call, so keep replies short and conversational.")
	return b.String()
}
