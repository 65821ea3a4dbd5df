package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// MaxCloneSampleBytes caps the uploaded voice sample at 25MB.
	MaxCloneSampleBytes = 25 * 1024 * 1024
)

// ErrCloneInProgress is returned when a clone job is already running.
var ErrCloneInProgress = errors.New("voice clone already in progress")

var cloneSampleExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
}

// CloneRequest describes a voice cloning job.
type CloneRequest struct {
	Name        string    // Display name for the new voice
	Description string    // Optional description
	Sample      io.Reader // Audio sample content
	Filename    string    // Sample filename, used for format validation
}

// Cloner creates custom voices from audio samples through the
// ElevenLabs voice add API. At most one clone job runs at a time.
type Cloner struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu   sync.Mutex
	busy bool
}

// NewCloner creates a voice cloner. baseURL may be empty for the
// production API.
func NewCloner(apiKey, baseURL string) (*Cloner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	if baseURL == "" {
		baseURL = elevenLabsDefaultBaseURL
	}
	return &Cloner{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// CloneVoice uploads the sample and returns the new voice id.
func (c *Cloner) CloneVoice(ctx context.Context, req CloneRequest) (string, error) {
	if err := validateCloneRequest(req); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrCloneInProgress
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	// Reject oversized samples while reading, without buffering more
	// than the cap.
	sample, err := io.ReadAll(io.LimitReader(req.Sample, MaxCloneSampleBytes+1))
	if err != nil {
		return "", fmt.Errorf("read sample: %w", err)
	}
	if len(sample) > MaxCloneSampleBytes {
		return "", fmt.Errorf("sample exceeds %d byte limit", MaxCloneSampleBytes)
	}

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("name", req.Name); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if req.Description != "" {
		if err := writer.WriteField("description", req.Description); err != nil {
			return "", fmt.Errorf("build form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("files", req.Filename)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(sample); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/voices/add", strings.NewReader(body.String()))
	if err != nil {
		return "", NewError(ErrCodeUnknown, "create request", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", NewError(ErrCodeProviderError, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp)
	}

	var result struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", NewError(ErrCodeProviderError, "decode response", err)
	}
	if result.VoiceID == "" {
		return "", NewError(ErrCodeProviderError, "empty voice id in response", nil)
	}

	log.Printf("[tts cloner] created voice %s (%s)", result.VoiceID, req.Name)
	return result.VoiceID, nil
}

func validateCloneRequest(req CloneRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("voice name is required")
	}
	if req.Sample == nil {
		return fmt.Errorf("audio sample is required")
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !cloneSampleExtensions[ext] {
		return fmt.Errorf("unsupported sample format %q", ext)
	}
	return nil
}
