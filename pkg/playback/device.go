package playback

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// DeviceSink plays PCM through the default output device. Written
// frames accumulate in a buffer the device callback drains; when the
// buffer runs dry the device outputs silence.
type DeviceSink struct {
	sampleRate int
	channels   int

	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	mu     sync.Mutex
	buffer []byte
}

var _ Sink = (*DeviceSink)(nil)

func NewDeviceSink(sampleRate, channels int) (*DeviceSink, error) {
	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}

	s := &DeviceSink{
		sampleRate:   sampleRate,
		channels:     channels,
		audioContext: audioContext,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.PeriodSizeInMilliseconds = 20
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(audioContext.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			s.mu.Lock()
			n := copy(outputSamples, s.buffer)
			s.buffer = s.buffer[n:]
			s.mu.Unlock()

			for i := n; i < len(outputSamples); i++ {
				outputSamples[i] = 0
			}
		},
	})
	if err != nil {
		audioContext.Uninit()
		return nil, fmt.Errorf("initialize playback device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		audioContext.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}

	log.Printf("[playback device] started (%d Hz, %d ch)", sampleRate, channels)
	return s, nil
}

func (s *DeviceSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, pcm...)
	return nil
}

func (s *DeviceSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = nil
}

// Close stops and releases the output device.
func (s *DeviceSink) Close() error {
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
