package audio

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRecorder yields a fixed interleaved pattern until closed or a scripted
// error fires.
type fakeRecorder struct {
	channels   int
	sampleRate float64
	pattern    []float64
	failAfter  int // reads before returning an error; 0 means never

	mu    sync.Mutex
	reads int
	open  bool
}

func (r *fakeRecorder) Read(dst []float64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return 0, errors.New("recorder closed")
	}
	r.reads++
	if r.failAfter > 0 && r.reads > r.failAfter {
		return 0, errors.New("stream died")
	}
	for i := range dst {
		dst[i] = r.pattern[i%len(r.pattern)]
	}
	// Pace the capture loop like a real blocking device read.
	time.Sleep(time.Millisecond)
	return len(dst), nil
}

func (r *fakeRecorder) Channels() int       { return r.channels }
func (r *fakeRecorder) SampleRate() float64 { return r.sampleRate }

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	return nil
}

// fakeProvider records the open candidates it was handed and can be scripted
// to refuse some of them.
type fakeProvider struct {
	ready    bool
	devices  []Device
	recorder *fakeRecorder

	mu         sync.Mutex
	candidates []any
	rejectKeys map[string]bool
}

func (p *fakeProvider) Ready() bool { return p.ready }

func (p *fakeProvider) OutputDevices() ([]Device, error) {
	return p.devices, nil
}

func (p *fakeProvider) DefaultOutputDevice() (*Device, error) {
	if len(p.devices) == 0 {
		return nil, ErrDeviceUnavailable
	}
	d := p.devices[0]
	return &d, nil
}

func (p *fakeProvider) OpenLoopback(candidate any, blockFrames int) (Recorder, error) {
	p.mu.Lock()
	p.candidates = append(p.candidates, candidate)
	rejected := p.rejectKeys[fmt.Sprint(candidate)]
	p.mu.Unlock()
	if rejected {
		return nil, errors.New("candidate refused")
	}
	p.recorder.mu.Lock()
	p.recorder.open = true
	p.recorder.reads = 0
	p.recorder.mu.Unlock()
	return p.recorder, nil
}

func newFakeProvider(channels int, pattern []float64) *fakeProvider {
	return &fakeProvider{
		ready: true,
		devices: []Device{
			{ID: 0, UID: "uid-0", Name: "Test Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		},
		recorder: &fakeRecorder{
			channels:   channels,
			sampleRate: 48000,
			pattern:    pattern,
		},
	}
}

func waitForFrames(t *testing.T, frames *int, mu *sync.Mutex) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := *frames
		mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no frames delivered before deadline")
}

func TestEngineStartStop(t *testing.T) {
	var mu sync.Mutex
	frames := 0
	provider := newFakeProvider(1, []float64{0.5})

	engine := NewEngine(provider, 256, func(f Frame) {
		mu.Lock()
		frames++
		mu.Unlock()
	})

	if err := engine.Start(provider.devices[0]); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !engine.Active() {
		t.Fatal("engine should be active after Start")
	}
	if got := engine.SampleRate(); got != 48000 {
		t.Errorf("SampleRate = %f, expected 48000", got)
	}

	waitForFrames(t, &frames, &mu)

	engine.Stop()
	if engine.Active() {
		t.Error("engine should be inactive after Stop")
	}
	// Stop is idempotent.
	engine.Stop()
}

func TestEngineNotConfigured(t *testing.T) {
	engine := NewEngine(&fakeProvider{ready: false}, 256, nil)
	if err := engine.Start(Device{Name: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEngineDownmixesToMono(t *testing.T) {
	var mu sync.Mutex
	frames := 0
	var first []float64

	// Stereo pattern: left 1.0, right 0.0 should average to 0.5.
	provider := newFakeProvider(2, []float64{1.0, 0.0})
	engine := NewEngine(provider, 128, func(f Frame) {
		mu.Lock()
		if frames == 0 {
			first = append([]float64(nil), f.Samples...)
		}
		frames++
		mu.Unlock()
	})

	if err := engine.Start(provider.devices[0]); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	waitForFrames(t, &frames, &mu)

	mu.Lock()
	defer mu.Unlock()
	if len(first) != 128 {
		t.Fatalf("expected 128 mono samples, got %d", len(first))
	}
	for i, s := range first {
		if s != 0.5 {
			t.Fatalf("sample %d = %f, expected 0.5 after downmix", i, s)
		}
	}
}

func TestEngineCandidateOrder(t *testing.T) {
	provider := newFakeProvider(1, []float64{0.1})
	provider.rejectKeys = map[string]bool{"native-ref": true}

	device := Device{ID: 3, UID: "uid-3", Name: "Rejected First", Ref: "native-ref"}
	engine := NewEngine(provider, 64, nil)
	if err := engine.Start(device); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.candidates) < 2 {
		t.Fatalf("expected at least 2 candidates tried, got %d", len(provider.candidates))
	}
	if provider.candidates[0] != any("native-ref") {
		t.Errorf("first candidate = %v, expected the native ref", provider.candidates[0])
	}
	if provider.candidates[1] != any("uid-3") {
		t.Errorf("second candidate = %v, expected the UID", provider.candidates[1])
	}
}

func TestEngineOpenFailure(t *testing.T) {
	provider := newFakeProvider(1, []float64{0.1})
	provider.rejectKeys = map[string]bool{
		"native-ref": true, "uid-9": true, "Refused": true, "9": true,
	}

	engine := NewEngine(provider, 64, nil)
	err := engine.Start(Device{ID: 9, UID: "uid-9", Name: "Refused", Ref: "native-ref"})
	if !errors.Is(err, ErrCaptureOpenFailed) {
		t.Errorf("expected ErrCaptureOpenFailed, got %v", err)
	}
	if engine.Active() {
		t.Error("engine must not be active after a failed Start")
	}
}

func TestEngineSurfacesRuntimeError(t *testing.T) {
	provider := newFakeProvider(1, []float64{0.1})
	provider.recorder.failAfter = 2

	engine := NewEngine(provider, 64, nil)
	if err := engine.Start(provider.devices[0]); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for engine.Active() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if engine.Active() {
		t.Fatal("engine should stop after a read error")
	}

	msg := engine.TakeError()
	if msg != "stream died" {
		t.Errorf("TakeError = %q, expected the read error", msg)
	}
	// The error is cleared after being taken once.
	if msg = engine.TakeError(); msg != "" {
		t.Errorf("second TakeError = %q, expected empty", msg)
	}
}
