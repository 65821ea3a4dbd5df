package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/echoes-ai/echocall/pkg/trace"
)

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey     string
	Model      string // e.g. "gemini-2.0-flash"
	MaxHistory int
}

// DefaultGeminiConfig returns the default Gemini provider configuration.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:     apiKey,
		Model:      "gemini-2.0-flash",
		MaxHistory: 20,
	}
}

// GeminiProvider generates replies through the Gemini API.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *genai.Client
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: client,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.generate")
	defer span.End()

	prompt := buildGeminiPrompt(trimHistory(history, p.cfg.MaxHistory), userText)

	resp, err := p.client.Models.GenerateContent(
		ctx,
		p.cfg.Model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{
					{Text: systemPrompt},
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	reply := collectText(resp)
	if reply == "" {
		return "", fmt.Errorf("no response from model")
	}

	log.Printf("[llm gemini] generated %d chars (model: %s)", len(reply), p.cfg.Model)
	return reply, nil
}

// buildGeminiPrompt flattens prior turns into a single prompt, since
// the system instruction already carries the persona.
func buildGeminiPrompt(history []Message, userText string) string {
	if len(history) == 0 {
		return userText
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(userText)
	return b.String()
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
