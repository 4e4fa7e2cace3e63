// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "spectro/internal/log"
)

// bufferQueueDepth bounds how many raw buffers can wait for the
// analysis goroutine. Beyond this the oldest is dropped: bounded
// staleness beats an audio callback that stalls.
const bufferQueueDepth = 16

// DefaultFramesPerBuffer balances callback rate against latency.
const DefaultFramesPerBuffer = 512

// PortAudioBackend implements Backend over the PortAudio library.
type PortAudioBackend struct{}

var _ Backend = (*PortAudioBackend)(nil)

func NewPortAudioBackend() *PortAudioBackend {
	return &PortAudioBackend{}
}

func (b *PortAudioBackend) Name() string { return "portaudio" }

// Initialize sets up the PortAudio subsystem. Must be paired with
// Terminate.
func (b *PortAudioBackend) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

func (b *PortAudioBackend) Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Devices enumerates all capture-capable devices.
func (b *PortAudioBackend) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         defaultIn != nil && info.Name == defaultIn.Name,
		})
	}
	return devices, nil
}

// Open negotiates a capture stream against the named device (or the
// system default). The device's native sample rate wins over the
// requested rate; the session delivers int16 blocks.
func (b *PortAudioBackend) Open(params SessionParams) (CaptureSession, error) {
	info, err := b.lookupDevice(params.Device)
	if err != nil {
		return nil, err
	}

	channels := params.Channels
	if channels < 1 || channels > info.MaxInputChannels {
		channels = info.MaxInputChannels
		if channels > 2 {
			channels = 2
		}
	}

	sampleRate := info.DefaultSampleRate
	if sampleRate <= 0 {
		sampleRate = params.SampleRate
	}

	framesPerBuffer := params.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}

	s := &paSession{
		spec: StreamSpec{
			Format:     FormatInt16,
			Channels:   channels,
			SampleRate: sampleRate,
		},
		buffers: make(chan *RawBuffer, bufferQueueDepth),
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultHighInputLatency,
		},
		FramesPerBuffer: framesPerBuffer,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(streamParams, s.callback)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream on %q: %v", ErrDeviceUnavailable, info.Name, err)
	}
	s.stream = stream

	applog.Infof("Audio: opened %q (%d ch @ %.0f Hz, %d frames/buffer)",
		info.Name, channels, sampleRate, framesPerBuffer)

	return s, nil
}

func (b *PortAudioBackend) lookupDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return info, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	for _, info := range infos {
		if info.Name == name && info.MaxInputChannels > 0 {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: device %q not found", ErrDeviceUnavailable, name)
}

// paSession is one PortAudio capture stream.
type paSession struct {
	spec    StreamSpec
	stream  *portaudio.Stream
	buffers chan *RawBuffer

	mu      sync.Mutex
	stopped bool
}

var _ CaptureSession = (*paSession)(nil)

func (s *paSession) Spec() StreamSpec           { return s.spec }
func (s *paSession) Buffers() <-chan *RawBuffer { return s.buffers }

func (s *paSession) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

func (s *paSession) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		close(s.buffers)
		return fmt.Errorf("stop stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		close(s.buffers)
		return fmt.Errorf("close stream: %w", err)
	}
	close(s.buffers)
	return nil
}

// callback runs in PortAudio's audio thread. It must never block: on a
// full queue it discards the oldest pending buffer first.
func (s *paSession) callback(in []int16) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	samples := make([]int16, len(in))
	copy(samples, in)

	buf := &RawBuffer{
		Format:     FormatInt16,
		Channels:   s.spec.Channels,
		SampleRate: s.spec.SampleRate,
		Timestamp:  time.Now(),
		I16:        samples,
	}

	select {
	case s.buffers <- buf:
	default:
		// Queue full: drop the oldest, then retry once.
		select {
		case <-s.buffers:
		default:
		}
		select {
		case s.buffers <- buf:
		default:
		}
	}
	s.mu.Unlock()
}
