package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/echoes-ai/echocall/pkg/audio"
	"github.com/echoes-ai/echocall/pkg/vad"
)

const (
	micSampleRate = 16000
	micChannels   = 1
	micFrameMs    = 20
)

// MicSourceConfig controls utterance endpointing for the microphone
// source.
type MicSourceConfig struct {
	// MaxClipDuration bounds a single utterance.
	MaxClipDuration time.Duration

	// TrailingSilence ends the clip once speech was heard and this
	// much silence follows.
	TrailingSilence time.Duration

	// SpeechThreshold is the per-frame speech probability treated as
	// voice.
	SpeechThreshold float32

	// PreRoll is how much audio from before a ReadClip call is kept,
	// so speech that starts between calls keeps its onset.
	PreRoll time.Duration
}

// DefaultMicSourceConfig returns the default endpointing configuration.
func DefaultMicSourceConfig() MicSourceConfig {
	return MicSourceConfig{
		MaxClipDuration: 10 * time.Second,
		TrailingSilence: 700 * time.Millisecond,
		SpeechThreshold: 0.5,
		PreRoll:         300 * time.Millisecond,
	}
}

// MicSource records utterances from the default capture device. One
// ReadClip call records until trailing silence after speech, or the
// clip duration cap.
type MicSource struct {
	cfg      MicSourceConfig
	detector vad.Detector

	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	mu      sync.Mutex
	frames  chan []byte
	preroll *audio.Ring
}

var _ AudioSource = (*MicSource)(nil)

func NewMicSource(cfg MicSourceConfig, detector vad.Detector) (*MicSource, error) {
	if cfg.MaxClipDuration == 0 {
		cfg = DefaultMicSourceConfig()
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}

	s := &MicSource{
		cfg:          cfg,
		detector:     detector,
		audioContext: audioContext,
		frames:       make(chan []byte, 100),
		preroll:      audio.NewRing(micSampleRate, cfg.PreRoll),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = micFrameMs
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = micChannels
	deviceConfig.SampleRate = micSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(audioContext.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			frame := make([]byte, len(inputSamples))
			copy(frame, inputSamples)
			s.preroll.Write(frame)
			select {
			case s.frames <- frame:
			default:
				// Reader fell behind, drop the frame.
			}
		},
	})
	if err != nil {
		audioContext.Uninit()
		return nil, fmt.Errorf("initialize capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		audioContext.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	log.Printf("[capture mic] device started (%d Hz, %d ch)", micSampleRate, micChannels)
	return s, nil
}

// ReadClip records one utterance. Returns an empty slice when the cap
// is reached without any speech.
func (s *MicSource) ReadClip(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detector != nil {
		s.detector.Reset()
	}

	// Drain stale frames from before this call. The pre-roll ring still
	// holds the tail of them, so speech that started just before this
	// call keeps its onset.
	for {
		select {
		case <-s.frames:
			continue
		default:
		}
		break
	}

	clip := s.preroll.Snapshot()
	var speechSeen bool
	var silentFor time.Duration

	deadline := time.Now().Add(s.cfg.MaxClipDuration)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame := <-s.frames:
			clip = append(clip, frame...)

			voiced := s.frameVoiced(frame)
			if voiced {
				speechSeen = true
				silentFor = 0
			} else {
				silentFor += micFrameMs * time.Millisecond
			}
			if speechSeen && silentFor >= s.cfg.TrailingSilence {
				return clip, nil
			}
		}
	}

	if !speechSeen {
		return nil, nil
	}
	return clip, nil
}

func (s *MicSource) frameVoiced(frame []byte) bool {
	if s.detector == nil {
		return true
	}
	samples := make([]float32, len(frame)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768.0
	}
	prob, err := s.detector.Infer(samples)
	if err != nil {
		return true
	}
	return prob >= s.cfg.SpeechThreshold
}

// Close stops and releases the capture device.
func (s *MicSource) Close() error {
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.audioContext != nil {
		s.audioContext.Uninit()
		s.audioContext = nil
	}
	return nil
}
