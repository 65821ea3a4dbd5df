// ElevenLabs TTS provider.
//
// Uses the ElevenLabs HTTP API for text-to-speech synthesis. Outputs
// 16kHz mono PCM audio.
//
// Reference: https://elevenlabs.io/docs/api-reference/text-to-speech

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/echoes-ai/echocall/pkg/trace"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_multilingual_v2"
	elevenLabsOutputFormat   = "pcm_16000" // 16kHz mono PCM
	elevenLabsSampleRate     = 16000
)

// ElevenLabsConfig holds the configuration for the ElevenLabs provider.
type ElevenLabsConfig struct {
	APIKey          string  // Required: ElevenLabs API key
	VoiceID         string  // Required: default voice ID
	Model           string  // Optional: model ID (default: eleven_multilingual_v2)
	Stability       float64 // Optional: voice stability 0-1 (default: 0.5)
	SimilarityBoost float64 // Optional: similarity boost 0-1 (default: 0.75)
	BaseURL         string  // Optional: API base URL override
}

// ElevenLabsProvider implements Provider using the ElevenLabs HTTP API.
type ElevenLabsProvider struct {
	apiKey          string
	voiceID         string
	model           string
	stability       float64
	similarityBoost float64
	baseURL         string
	httpClient      *http.Client
}

var _ Provider = (*ElevenLabsProvider)(nil)

// NewElevenLabsProvider creates a new ElevenLabs provider.
func NewElevenLabsProvider(config ElevenLabsConfig) (*ElevenLabsProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	if config.VoiceID == "" {
		return nil, fmt.Errorf("ElevenLabs Voice ID is required")
	}

	model := config.Model
	if model == "" {
		model = elevenLabsDefaultModel
	}
	stability := config.Stability
	if stability == 0 {
		stability = 0.5
	}
	similarityBoost := config.SimilarityBoost
	if similarityBoost == 0 {
		similarityBoost = 0.75
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsDefaultBaseURL
	}

	return &ElevenLabsProvider{
		apiKey:          config.APIKey,
		voiceID:         config.VoiceID,
		model:           model,
		stability:       stability,
		similarityBoost: similarityBoost,
		baseURL:         baseURL,
		httpClient:      &http.Client{},
	}, nil
}

// Name returns the provider name.
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Synthesize converts text to speech.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	ctx, span := trace.StartSpan(ctx, "tts.synthesize")
	defer span.End()

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = p.voiceID
	}

	params := url.Values{}
	params.Set("output_format", elevenLabsOutputFormat)

	requestURL := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", p.baseURL, voiceID, params.Encode())

	body := elevenLabsRequestBody{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       p.stability,
			SimilarityBoost: p.similarityBoost,
		},
	}
	if req.Language != "" {
		body.LanguageCode = req.Language
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, NewError(ErrCodeUnknown, "marshal request body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, NewError(ErrCodeUnknown, "create request", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError(ErrCodeProviderError, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrCodeProviderError, "read response body", err)
	}

	return &SynthesizeResponse{
		AudioData: audioData,
		AudioFormat: AudioFormat{
			SampleRate: elevenLabsSampleRate,
			Channels:   1,
			Encoding:   "pcm_s16le",
		},
	}, nil
}

// ValidateConfig validates the provider configuration.
func (p *ElevenLabsProvider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("ElevenLabs API key is not set")
	}
	if p.voiceID == "" {
		return fmt.Errorf("ElevenLabs Voice ID is not set")
	}
	return nil
}

// classifyStatus maps an API error response to a typed error.
func classifyStatus(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(ErrCodeInvalidCredentials, msg, nil)
	case http.StatusTooManyRequests:
		return NewError(ErrCodeRateLimited, msg, nil)
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return NewError(ErrCodeInvalidVoice, msg, nil)
	default:
		return NewError(ErrCodeProviderError, msg, nil)
	}
}

type elevenLabsRequestBody struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
	LanguageCode  string                   `json:"language_code,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}
