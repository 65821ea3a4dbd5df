package vad

import "sync"

// MockDetector is a Detector implementation for testing. Behavior is
// customized through the InferFunc field; if nil, Infer returns 0.0
// (no speech).
type MockDetector struct {
	InferFunc func(samples []float32) (float32, error)

	mu         sync.Mutex
	inferCalls int
	resetCalls int
}

var _ Detector = (*MockDetector)(nil)

func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// NewMockDetectorWithProb creates a MockDetector returning a fixed
// probability.
func NewMockDetectorWithProb(prob float32) *MockDetector {
	return &MockDetector{
		InferFunc: func(samples []float32) (float32, error) {
			return prob, nil
		},
	}
}

// NewMockDetectorWithSequence creates a MockDetector that returns the
// given probabilities in order, cycling when exhausted.
func NewMockDetectorWithSequence(probs []float32) *MockDetector {
	var mu sync.Mutex
	idx := 0
	return &MockDetector{
		InferFunc: func(samples []float32) (float32, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(probs) == 0 {
				return 0, nil
			}
			prob := probs[idx]
			idx = (idx + 1) % len(probs)
			return prob, nil
		},
	}
}

func (m *MockDetector) Infer(samples []float32) (float32, error) {
	m.mu.Lock()
	m.inferCalls++
	m.mu.Unlock()

	if m.InferFunc != nil {
		return m.InferFunc(samples)
	}
	return 0, nil
}

func (m *MockDetector) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return nil
}

// InferCallCount returns the number of times Infer was called.
func (m *MockDetector) InferCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inferCalls
}
