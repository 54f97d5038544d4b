// SPDX-License-Identifier: MIT
/*
Package audio implements loopback capture of the host machine's output
audio behind a narrow DeviceProvider interface:
- Device enumeration and preferred-device resolution
- A dedicated blocking capture loop producing mono sample frames
- Optional WAV tap of the captured stream

The provider interface keeps the engine and everything above it free of any
vendor audio API; the PortAudio adapter is the only file that imports one.
*/
package audio

import "errors"

// Capture failure taxonomy. Start paths return these wrapped with detail;
// they are never propagated past the command boundary as panics.
var (
	// ErrNotConfigured means no capture capability exists at the platform level.
	ErrNotConfigured = errors.New("audio capture is not available on this platform")
	// ErrDeviceUnavailable means enumeration found no usable output device.
	ErrDeviceUnavailable = errors.New("no audio output devices")
	// ErrCaptureOpenFailed means a specific device refused to open for loopback.
	ErrCaptureOpenFailed = errors.New("unable to open loopback capture")
)

// Device describes one output device as reported by the provider.
type Device struct {
	ID                int     // enumeration index
	UID               string  // stable platform identifier, may be empty
	Name              string  // human-readable name
	MaxOutputChannels int     // playback channel count
	DefaultSampleRate float64 // native sample rate in Hz

	// Ref is the provider's native handle for the device. It is opaque to
	// everything outside the provider and is the first open candidate.
	Ref any
}

// Frame is one block of mono samples handed to the analysis stage. Frames
// are consumed synchronously by the sink and never retained.
type Frame struct {
	Samples    []float64
	SampleRate float64
}

// Recorder is an open loopback capture session. Read blocks until a full
// block of interleaved samples is available.
type Recorder interface {
	// Read fills dst with interleaved samples and returns the count written.
	Read(dst []float64) (int, error)
	Channels() int
	SampleRate() float64
	Close() error
}

// DeviceProvider is the platform capability the engine depends on. Adapters
// wrap a specific audio API (PortAudio here); tests supply fakes.
type DeviceProvider interface {
	// Ready reports whether the platform capture capability is usable at all.
	Ready() bool
	// OutputDevices enumerates playback devices eligible for loopback.
	OutputDevices() ([]Device, error)
	// DefaultOutputDevice returns the platform default playback device.
	DefaultOutputDevice() (*Device, error)
	// OpenLoopback opens loopback capture for a device reference. The
	// candidate may be a native handle, a platform UID, a device name, or a
	// string rendering of the device; adapters accept what they can.
	OpenLoopback(candidate any, blockFrames int) (Recorder, error)
}
