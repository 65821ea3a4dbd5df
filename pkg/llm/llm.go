// Package llm defines the text generation provider used to produce an
// echo's conversational replies, with OpenAI and Gemini adapters.
package llm

import "context"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of the conversation.
type Message struct {
	Role Role
	Text string
}

// Provider generates one reply to the latest user utterance, given the
// persona's system prompt and the prior turns in order.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai".
	Name() string

	// Generate returns the assistant reply text. It must not mutate
	// history.
	Generate(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error)
}
