package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/echoes-ai/echocall/pkg/trace"
	"github.com/echoes-ai/echocall/pkg/vad"
)

// AudioSource records one utterance of raw PCM (16-bit little-endian
// mono). Returning an empty slice means nothing was captured.
type AudioSource interface {
	ReadClip(ctx context.Context) ([]byte, error)
}

// WhisperConfig holds configuration for the Whisper recognizer.
type WhisperConfig struct {
	APIKey     string
	Model      string // default whisper-1
	Language   string // e.g. "en", empty for auto-detect
	BaseURL    string // optional API base URL override
	SampleRate int    // PCM sample rate of the audio source, default 16000

	// SpeechThreshold is the minimum speech probability for a clip to
	// reach transcription. Clips below it come back as silence.
	SpeechThreshold float32
}

// DefaultWhisperConfig returns the default Whisper configuration.
func DefaultWhisperConfig(apiKey string) WhisperConfig {
	return WhisperConfig{
		APIKey:          apiKey,
		Model:           openai.Whisper1,
		SampleRate:      16000,
		SpeechThreshold: 0.5,
	}
}

// WhisperRecognizer transcribes recorded clips through the OpenAI
// Whisper API, gated by a voice activity detector so silent clips are
// never uploaded.
type WhisperRecognizer struct {
	cfg      WhisperConfig
	client   *openai.Client
	source   AudioSource
	detector vad.Detector
}

var _ Recognizer = (*WhisperRecognizer)(nil)

func NewWhisperRecognizer(cfg WhisperConfig, source AudioSource, detector vad.Detector) (*WhisperRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if source == nil {
		return nil, fmt.Errorf("audio source is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = 0.5
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &WhisperRecognizer{
		cfg:      cfg,
		client:   client,
		source:   source,
		detector: detector,
	}, nil
}

// Recognize records one clip and transcribes it. Clips the detector
// classifies as non-speech return an empty transcript without an API
// call.
func (w *WhisperRecognizer) Recognize(ctx context.Context) (string, error) {
	clip, err := w.source.ReadClip(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if len(clip) == 0 {
		return "", nil
	}

	if w.detector != nil {
		prob, err := w.detector.Infer(pcmToFloat32(clip))
		if err != nil {
			log.Printf("[capture whisper] vad error, transcribing anyway: %v", err)
		} else if prob < w.cfg.SpeechThreshold {
			return "", nil
		}
	}

	ctx, span := trace.StartSpan(ctx, "capture.transcribe")
	defer span.End()

	wavData := pcmToWAV(clip, w.cfg.SampleRate, 1)

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: "audio.wav", // filename hint for the API
		Reader:   bytes.NewReader(wavData),
		Language: w.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	log.Printf("[capture whisper] transcribed %d bytes in %v", len(clip), time.Since(start))
	return resp.Text, nil
}

// pcmToFloat32 converts 16-bit little-endian PCM to normalized
// float32 samples.
func pcmToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// pcmToWAV wraps raw 16-bit PCM in a WAV header, which the Whisper API
// requires.
func pcmToWAV(pcmData []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer

	const bitsPerSample = 16

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcmData)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}
