package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/echoes-ai/echocall/pkg/trace"
)

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // e.g. "gpt-4o-mini"
	BaseURL    string // optional override for proxies
	MaxTokens  int    // 0 = provider default
	MaxHistory int    // max history messages sent per request, 0 = unlimited
}

// DefaultOpenAIConfig returns the default OpenAI provider configuration.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:     apiKey,
		Model:      "gpt-4o-mini",
		MaxTokens:  150,
		MaxHistory: 20,
	}
}

// OpenAIProvider generates replies through the OpenAI Chat Completion
// API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *openai.Client
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		cfg:    cfg,
		client: &client,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.generate")
	defer span.End()

	params := openai.ChatCompletionNewParams{
		Messages: p.buildMessages(systemPrompt, history, userText),
		Model:    shared.ChatModel(p.cfg.Model),
	}
	if p.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.cfg.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	reply := completion.Choices[0].Message.Content
	log.Printf("[llm openai] generated %d chars (model: %s)", len(reply), p.cfg.Model)
	return reply, nil
}

func (p *OpenAIProvider) buildMessages(systemPrompt string, history []Message, userText string) []openai.ChatCompletionMessageParamUnion {
	history = trimHistory(history, p.cfg.MaxHistory)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	messages = append(messages, openai.UserMessage(userText))
	return messages
}

// trimHistory keeps the most recent max messages, dropping whole
// user/assistant pairs so the window never starts mid-exchange.
func trimHistory(history []Message, max int) []Message {
	if max <= 0 || len(history) <= max {
		return history
	}
	excess := len(history) - max
	if excess%2 != 0 {
		excess++
	}
	if excess >= len(history) {
		return nil
	}
	return history[excess:]
}
