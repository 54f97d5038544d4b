// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// PortAudioProvider implements DeviceProvider on top of PortAudio. Loopback
// capture is resolved through monitor/loopback input devices: on PulseAudio
// and PipeWire every sink exposes a "Monitor of <sink>" source, and WASAPI
// loopback endpoints enumerate the same way.
type PortAudioProvider struct{}

var _ DeviceProvider = (*PortAudioProvider)(nil)

func NewPortAudioProvider() *PortAudioProvider {
	return &PortAudioProvider{}
}

// Ready reports whether PortAudio can enumerate devices at all.
func (p *PortAudioProvider) Ready() bool {
	_, err := portaudio.Devices()
	return err == nil
}

// OutputDevices returns all playback-capable devices.
func (p *PortAudioProvider) OutputDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	var devices []Device
	for i, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                len(devices),
			UID:               strconv.Itoa(i), // PortAudio has no stable UID; host index stands in
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Ref:               info,
		})
	}
	if len(devices) == 0 {
		return nil, ErrDeviceUnavailable
	}
	return devices, nil
}

// DefaultOutputDevice returns the platform default playback device.
func (p *PortAudioProvider) DefaultOutputDevice() (*Device, error) {
	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	devices, err := p.OutputDevices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Ref == info {
			return &devices[i], nil
		}
	}
	return nil, ErrDeviceUnavailable
}

// OpenLoopback resolves a loopback-capable input for the candidate and opens
// a blocking-read stream on it.
func (p *PortAudioProvider) OpenLoopback(candidate any, blockFrames int) (Recorder, error) {
	input, err := p.resolveLoopbackInput(candidate)
	if err != nil {
		return nil, err
	}

	channels := input.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}

	buffer := make([]float32, blockFrames*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   input,
			Channels: channels,
			Latency:  input.DefaultHighInputLatency,
		},
		FramesPerBuffer: blockFrames,
		SampleRate:      input.DefaultSampleRate,
	}

	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureOpenFailed, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrCaptureOpenFailed, err)
	}

	return &paRecorder{
		stream:     stream,
		buffer:     buffer,
		channels:   channels,
		sampleRate: input.DefaultSampleRate,
	}, nil
}

// resolveLoopbackInput maps an output-device candidate to an input device
// that monitors it. Candidates are tried as native handle, host index, and
// name; name matching prefers an explicit monitor source for the device.
func (p *PortAudioProvider) resolveLoopbackInput(candidate any) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	switch c := candidate.(type) {
	case *portaudio.DeviceInfo:
		if c == nil {
			return nil, ErrCaptureOpenFailed
		}
		if c.MaxInputChannels > 0 {
			return c, nil
		}
		return findMonitorInput(infos, c.Name)
	case int:
		if c < 0 || c >= len(infos) {
			return nil, fmt.Errorf("%w: device index %d out of range", ErrCaptureOpenFailed, c)
		}
		return p.resolveLoopbackInput(infos[c])
	case string:
		if idx, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			return p.resolveLoopbackInput(idx)
		}
		return findMonitorInput(infos, c)
	default:
		return findMonitorInput(infos, fmt.Sprint(candidate))
	}
}

// findMonitorInput looks for an input device monitoring the named output:
// first "monitor" inputs whose name contains the output name, then any input
// with a matching name, then the default input as a last resort.
func findMonitorInput(infos []*portaudio.DeviceInfo, name string) (*portaudio.DeviceInfo, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		lower := strings.ToLower(info.Name)
		if strings.Contains(lower, "monitor") && strings.Contains(lower, needle) {
			return info, nil
		}
	}
	for _, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		if strings.Contains(strings.ToLower(info.Name), needle) {
			return info, nil
		}
	}
	input, err := portaudio.DefaultInputDevice()
	if err != nil || input == nil || input.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("%w: no monitor input for %q", ErrCaptureOpenFailed, name)
	}
	return input, nil
}

// paRecorder wraps a PortAudio blocking-read stream.
type paRecorder struct {
	stream     *portaudio.Stream
	buffer     []float32
	channels   int
	sampleRate float64
}

var _ Recorder = (*paRecorder)(nil)

func (r *paRecorder) Read(dst []float64) (int, error) {
	if err := r.stream.Read(); err != nil {
		return 0, err
	}
	n := len(r.buffer)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = float64(r.buffer[i])
	}
	return n, nil
}

func (r *paRecorder) Channels() int {
	return r.channels
}

func (r *paRecorder) SampleRate() float64 {
	return r.sampleRate
}

func (r *paRecorder) Close() error {
	if err := r.stream.Stop(); err != nil {
		r.stream.Close()
		return err
	}
	return r.stream.Close()
}
