package vad

import (
	"fmt"
	"math"
)

// DefaultEnergyThreshold is the RMS level treated as certain speech.
const DefaultEnergyThreshold = 0.015

// EnergyDetector is an RMS-energy speech gate. It needs no model file:
// the probability is the segment's RMS level scaled against a
// threshold, clamped to [0, 1]. Suited for gating transcription, not
// for precise endpointing.
type EnergyDetector struct {
	threshold float64
}

var _ Detector = (*EnergyDetector)(nil)

// NewEnergyDetector creates an energy detector. threshold is the RMS
// level mapped to probability 1.0; pass 0 for the default.
func NewEnergyDetector(threshold float64) *EnergyDetector {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	return &EnergyDetector{threshold: threshold}
}

func (d *EnergyDetector) Infer(samples []float32) (float32, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("empty sample buffer")
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	prob := rms / d.threshold
	if prob > 1 {
		prob = 1
	}
	return float32(prob), nil
}

func (d *EnergyDetector) Reset() error {
	return nil
}
