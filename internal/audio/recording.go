package audio

import (
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "reactive/internal/log"
)

// recordingTap writes the captured mono stream to a WAV file. It sits on the
// capture goroutine's hot path, so the enabled check is a single atomic load
// and all buffers are reused.
type recordingTap struct {
	enabled int32 // atomic flag checked per frame

	mu         sync.Mutex
	outputFile *os.File
	encoder    *wav.Encoder
	sampleBuf  *goaudio.IntBuffer
}

// StartRecording begins tapping captured frames to a 32-bit mono WAV file.
// Returns an error if a recording is already in progress. The sample rate is
// taken from the active capture session, so capture must be running first.
func (e *Engine) StartRecording(filename string) error {
	return e.rec.start(filename, int(e.SampleRate()), e.blockFrames)
}

// StopRecording finalizes the WAV file. Safe to call when not recording.
func (e *Engine) StopRecording() error {
	return e.rec.stop()
}

func (t *recordingTap) start(filename string, sampleRate, blockFrames int) error {
	if atomic.LoadInt32(&t.enabled) == 1 {
		return fmt.Errorf("already recording")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("no active capture session to record")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.outputFile = file
	t.encoder = wav.NewEncoder(file, sampleRate, 32, 1, 1)
	t.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, blockFrames),
	}
	t.mu.Unlock()

	atomic.StoreInt32(&t.enabled, 1)
	applog.Infof("Audio: recording capture tap to %s", filename)
	return nil
}

func (t *recordingTap) stop() error {
	if atomic.LoadInt32(&t.enabled) == 0 {
		return nil
	}
	atomic.StoreInt32(&t.enabled, 0)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.encoder != nil {
		if err := t.encoder.Close(); err != nil {
			return err
		}
		t.encoder = nil
	}
	if t.outputFile != nil {
		if err := t.outputFile.Close(); err != nil {
			return err
		}
		t.outputFile = nil
	}
	return nil
}

// write converts one mono frame to 32-bit integer samples and appends it to
// the encoder. Called from the capture goroutine.
func (t *recordingTap) write(samples []float64, sampleRate float64) {
	if atomic.LoadInt32(&t.enabled) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.encoder == nil || t.sampleBuf == nil {
		return
	}

	if len(t.sampleBuf.Data) < len(samples) {
		t.sampleBuf.Data = make([]int, len(samples))
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		t.sampleBuf.Data[i] = int(s * float64(math.MaxInt32))
	}
	t.sampleBuf.Data = t.sampleBuf.Data[:len(samples)]
	t.sampleBuf.Format.SampleRate = int(sampleRate)

	if err := t.encoder.Write(t.sampleBuf); err != nil {
		applog.Errorf("Audio: error writing to WAV file: %v", err)
	}
}
