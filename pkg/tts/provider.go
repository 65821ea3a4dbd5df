// Package tts provides speech synthesis for echo voices, with an
// ElevenLabs provider and voice cloning support.
package tts

import "context"

// AudioFormat describes the synthesized audio.
type AudioFormat struct {
	SampleRate int    // Sample rate in Hz (e.g., 16000)
	Channels   int    // 1 for mono, 2 for stereo
	Encoding   string // e.g. "pcm_s16le"
}

// SynthesizeRequest represents a request to synthesize speech.
type SynthesizeRequest struct {
	Text     string // Text to synthesize
	Voice    string // Voice ID, empty for the provider default
	Language string // Language code (e.g., "en-US"), optional
}

// SynthesizeResponse represents the response from speech synthesis.
type SynthesizeResponse struct {
	AudioData   []byte
	AudioFormat AudioFormat
}

// Provider defines the interface all speech synthesis services
// implement.
type Provider interface {
	// Name returns the provider name (e.g., "elevenlabs").
	Name() string

	// Synthesize converts text to speech. Failures carry a *tts.Error
	// so callers can distinguish rate limits from bad credentials or
	// an unknown voice.
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// ValidateConfig returns an error if credentials or required
	// settings are missing.
	ValidateConfig() error
}
