package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(amplitude float64, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*float64(i)/64))
	}
	return samples
}

func TestEnergyDetectorSilence(t *testing.T) {
	d := NewEnergyDetector(0)

	prob, err := d.Infer(make([]float32, 512))
	require.NoError(t, err)
	assert.Equal(t, float32(0), prob)
}

func TestEnergyDetectorSpeech(t *testing.T) {
	d := NewEnergyDetector(0)

	prob, err := d.Infer(sineWave(0.5, 512))
	require.NoError(t, err)
	assert.Equal(t, float32(1), prob)
}

func TestEnergyDetectorQuietBelowLoud(t *testing.T) {
	d := NewEnergyDetector(0.5)

	quiet, err := d.Infer(sineWave(0.01, 512))
	require.NoError(t, err)
	loud, err := d.Infer(sineWave(0.2, 512))
	require.NoError(t, err)

	assert.Less(t, quiet, loud)
	assert.Greater(t, loud, float32(0))
	assert.LessOrEqual(t, loud, float32(1))
}

func TestEnergyDetectorEmptyBuffer(t *testing.T) {
	d := NewEnergyDetector(0)
	_, err := d.Infer(nil)
	assert.Error(t, err)
}

func TestMockDetectorSequence(t *testing.T) {
	d := NewMockDetectorWithSequence([]float32{0.1, 0.9})

	p1, _ := d.Infer(nil)
	p2, _ := d.Infer(nil)
	p3, _ := d.Infer(nil)

	assert.Equal(t, float32(0.1), p1)
	assert.Equal(t, float32(0.9), p2)
	assert.Equal(t, float32(0.1), p3)
	assert.Equal(t, 3, d.InferCallCount())
}
