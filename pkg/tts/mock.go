package tts

import (
	"context"
	"sync"
)

// MockProvider is a Provider implementation for testing. Behavior is
// customized through SynthesizeFunc; by default it returns a short
// silent PCM clip.
type MockProvider struct {
	SynthesizeFunc func(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	mu    sync.Mutex
	calls []SynthesizeRequest
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return &SynthesizeResponse{
		AudioData: make([]byte, 320),
		AudioFormat: AudioFormat{
			SampleRate: 16000,
			Channels:   1,
			Encoding:   "pcm_s16le",
		},
	}, nil
}

func (m *MockProvider) ValidateConfig() error {
	return nil
}

// Calls returns a copy of the recorded synthesize requests.
func (m *MockProvider) Calls() []SynthesizeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SynthesizeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
