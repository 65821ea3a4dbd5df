// Package vad provides voice activity detection used to gate speech
// capture: segments with no detected speech never reach transcription.
package vad

// Detector reports the probability that an audio segment contains
// speech.
type Detector interface {
	// Infer runs detection on audio samples and returns the speech
	// probability. samples are normalized float32 values in [-1, 1].
	// Returns a value in [0, 1] where higher values indicate speech.
	Infer(samples []float32) (float32, error)

	// Reset clears internal state. Call it when starting a new audio
	// stream.
	Reset() error
}
