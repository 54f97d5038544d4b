// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	applog "reactive/internal/log"
)

// stopTimeout bounds how long Stop waits for the capture goroutine to notice
// the stop flag. A blocking Read that never returns leaves the goroutine
// abandoned; see the note on Stop.
const stopTimeout = time.Second

// Engine owns the blocking capture loop for one loopback session. Each
// successful read yields one mono Frame delivered to the sink; multi-channel
// input is downmixed by averaging channels.
//
// Start and Stop are idempotent and safe to call repeatedly from one
// goroutine; the controller serializes them.
type Engine struct {
	provider    DeviceProvider
	blockFrames int
	sink        func(Frame)

	mu       sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}

	errMu   sync.Mutex
	lastErr string

	sampleRate atomic.Value // float64 of the active session

	rec recordingTap
}

// NewEngine creates a capture engine. The sink is invoked on the capture
// goroutine for every frame and must not block.
func NewEngine(provider DeviceProvider, blockFrames int, sink func(Frame)) *Engine {
	return &Engine{
		provider:    provider,
		blockFrames: blockFrames,
		sink:        sink,
	}
}

// Start stops any prior session and opens loopback capture on the device,
// trying the native handle, the platform id, the name, and the string form
// in that order. Open failures are returned synchronously, wrapped in the
// capture error taxonomy.
func (e *Engine) Start(dev Device) error {
	e.Stop()

	if e.provider == nil || !e.provider.Ready() {
		return ErrNotConfigured
	}

	recorder, err := e.openFirst(dev)
	if err != nil {
		return err
	}

	e.errMu.Lock()
	e.lastErr = ""
	e.errMu.Unlock()
	e.sampleRate.Store(recorder.SampleRate())

	e.mu.Lock()
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	stop, done := e.stopChan, e.doneChan
	e.mu.Unlock()

	go e.captureLoop(recorder, stop, done)
	applog.Infof("Audio: capture started on %q (%.0f Hz, block %d)",
		dev.Name, recorder.SampleRate(), e.blockFrames)
	return nil
}

// openFirst tries each open candidate for the device until one succeeds.
func (e *Engine) openFirst(dev Device) (Recorder, error) {
	candidates := make([]any, 0, 4)
	seen := make(map[string]bool)
	for _, c := range []any{dev.Ref, dev.UID, dev.Name, strconv.Itoa(dev.ID)} {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && s == "" {
			continue
		}
		key := fmt.Sprint(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, c)
	}

	var lastErr error
	for _, candidate := range candidates {
		recorder, err := e.provider.OpenLoopback(candidate, e.blockFrames)
		if err == nil {
			return recorder, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureOpenFailed, lastErr)
	}
	return nil, ErrCaptureOpenFailed
}

// Stop signals the capture loop and joins it with a bounded timeout. If the
// underlying blocking read does not return within the timeout the goroutine
// is abandoned rather than forcibly terminated; on platforms without an
// interruptible read this can leak the native stream until the read
// completes. Known limitation.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop, done := e.stopChan, e.doneChan
	e.stopChan, e.doneChan = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)

	select {
	case <-done:
	case <-time.After(stopTimeout):
		applog.Warnf("Audio: capture thread did not stop within %s, abandoning", stopTimeout)
	}
}

// Active reports whether a capture goroutine is currently running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	done := e.doneChan
	e.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// TakeError returns the last mid-stream capture error and clears it.
func (e *Engine) TakeError() string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	msg := e.lastErr
	e.lastErr = ""
	return msg
}

// SampleRate returns the sample rate of the most recent session.
func (e *Engine) SampleRate() float64 {
	if v, ok := e.sampleRate.Load().(float64); ok {
		return v
	}
	return 0
}

// captureLoop is the producer side of the session: one blocking read per
// block, downmix to mono, deliver to the sink. A read error records a
// runtime error and ends the session; the controller notices via Active.
func (e *Engine) captureLoop(recorder Recorder, stop, done chan struct{}) {
	defer close(done)
	defer recorder.Close()

	channels := recorder.Channels()
	if channels < 1 {
		channels = 1
	}
	sampleRate := recorder.SampleRate()
	interleaved := make([]float64, e.blockFrames*channels)
	mono := make([]float64, e.blockFrames)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := recorder.Read(interleaved)
		if err != nil {
			e.errMu.Lock()
			e.lastErr = err.Error()
			e.errMu.Unlock()
			applog.Errorf("Audio: capture read failed: %v", err)
			return
		}
		if n == 0 {
			continue
		}

		frames := n / channels
		if channels == 1 {
			copy(mono[:frames], interleaved[:frames])
		} else {
			inv := 1.0 / float64(channels)
			for i := 0; i < frames; i++ {
				sum := 0.0
				base := i * channels
				for c := 0; c < channels; c++ {
					sum += interleaved[base+c]
				}
				mono[i] = sum * inv
			}
		}

		e.rec.write(mono[:frames], sampleRate)

		if e.sink != nil {
			e.sink(Frame{Samples: mono[:frames], SampleRate: sampleRate})
		}
	}
}
