// SPDX-License-Identifier: MIT
/*
Package analysis turns raw capture frames into the smoothed perceptual
signals the parameter mapper consumes:
- Hann-windowed magnitude spectrum via gonum's real FFT
- Scalar spectral features (centroid, bandwidth, rolloff, flatness, flux)
- Log-spaced band levels normalized against a decaying running peak
- Musical-note bucket levels over a precomputed bin-to-MIDI map

All mutable state lives behind a single mutex; readers always receive
copies. Results older than the staleness window read as silence so a dead
capture session can never replay its last frame.
*/
package analysis

import (
	"math"
	"math/cmplx"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"reactive/internal/audio"
)

const (
	// staleAfter invalidates levels and note buckets when no frame has been
	// analyzed recently; readers then see zeros instead of a frozen frame.
	staleAfter = 500 * time.Millisecond

	// peakDecay is the per-frame decay of the running band peak; the peak is
	// only raised when exceeded by a new raw maximum.
	peakDecay = 0.98
	peakFloor = 1e-6

	bandLowHz  = 40.0
	bandHighHz = 16000.0

	rolloffFraction = 0.85
)

// Features is the scalar feature vector recomputed on every frame.
type Features struct {
	RMS         float64
	Peak        float64
	Crest       float64
	CentroidHz  float64
	BandwidthHz float64
	RolloffHz   float64
	Flatness    float64
	Flux        float64
}

type binRange struct {
	start, end int
}

// Analyzer computes the spectrum, features and band levels for each frame.
// Process runs on the capture goroutine; all getters are safe to call
// concurrently from the polling side.
type Analyzer struct {
	bars int

	// Capture-goroutine-only working state.
	fft      *fourier.FFT
	fftSize  int
	win      []float64
	input    []float64
	mag      []float64
	prevSpec []float64

	mu         sync.Mutex
	dropFlux   bool
	sampleRate float64
	freqs      []float64
	binMIDI    []int
	bandBins   []binRange
	spectrum   []float64
	levels     []float64
	features   Features
	bandPeak   float64
	notePeaks  map[NoteMode]float64
	lastUpdate time.Time
}

// NewAnalyzer creates an analyzer producing bars band levels per frame.
func NewAnalyzer(bars int) *Analyzer {
	if bars < 1 {
		bars = 1
	}
	return &Analyzer{
		bars:      bars,
		levels:    make([]float64, bars),
		bandPeak:  peakFloor,
		notePeaks: make(map[NoteMode]float64),
	}
}

// Bars returns the configured band count.
func (a *Analyzer) Bars() int {
	return a.bars
}

// Reset clears all per-session state. Called when a capture session starts
// so a new device never inherits peaks or spectra from the previous one.
// Safe to call while the capture goroutine is mid-frame: only mutex-guarded
// state is touched here; the flux baseline drop is deferred to the next
// Process call, and the FFT workspace is rebuilt whenever the frame shape
// changes.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropFlux = true
	a.spectrum = nil
	a.levels = make([]float64, a.bars)
	a.features = Features{}
	a.bandPeak = peakFloor
	a.notePeaks = make(map[NoteMode]float64)
	a.lastUpdate = time.Time{}
}

// Process analyzes one mono frame: window, magnitude spectrum, scalar
// features, band aggregation. The frame buffer is not retained.
func (a *Analyzer) Process(frame audio.Frame) {
	n := len(frame.Samples)
	if n == 0 || frame.SampleRate <= 0 {
		return
	}

	if a.fft == nil || a.fftSize != n {
		a.rebuild(n, frame.SampleRate)
	}

	a.mu.Lock()
	if a.dropFlux {
		a.dropFlux = false
		a.prevSpec = nil
	}
	a.mu.Unlock()

	// Raw-sample features.
	var sumSquare, samplePeak float64
	for _, s := range frame.Samples {
		sumSquare += s * s
		if abs := math.Abs(s); abs > samplePeak {
			samplePeak = abs
		}
	}
	rms := math.Sqrt(sumSquare / float64(n))
	crest := samplePeak / (rms + 1e-9)

	// Windowed magnitude spectrum with the DC bin zeroed.
	for i, s := range frame.Samples {
		a.input[i] = s * a.win[i]
	}
	coeffs := a.fft.Coefficients(nil, a.input)
	for i, c := range coeffs {
		a.mag[i] = cmplx.Abs(c)
	}
	a.mag[0] = 0

	feat := a.spectralFeatures(rms, samplePeak, crest)

	// Band aggregation: mean magnitude per log-spaced bin slice.
	bandValues := make([]float64, a.bars)
	for i, br := range a.bandBins {
		if br.start >= len(a.mag) || br.end <= br.start {
			continue
		}
		sum := 0.0
		for j := br.start; j < br.end; j++ {
			sum += a.mag[j]
		}
		bandValues[i] = sum / float64(br.end-br.start)
	}

	rawPeak := 0.0
	for _, v := range bandValues {
		if v > rawPeak {
			rawPeak = v
		}
	}

	a.mu.Lock()
	a.bandPeak = math.Max(a.bandPeak*peakDecay, rawPeak)
	if a.bandPeak <= 1e-9 {
		for i := range a.levels {
			a.levels[i] = 0
		}
	} else {
		for i, v := range bandValues {
			a.levels[i] = math.Sqrt(math.Min(v/a.bandPeak, 1.0))
		}
	}
	if len(a.spectrum) != len(a.mag) {
		a.spectrum = make([]float64, len(a.mag))
	}
	copy(a.spectrum, a.mag)
	a.features = feat
	a.lastUpdate = time.Now()
	a.mu.Unlock()

	// Flux baseline for the next frame; capture-goroutine-only state.
	if len(a.prevSpec) != len(a.mag) {
		a.prevSpec = make([]float64, len(a.mag))
	}
	copy(a.prevSpec, a.mag)
}

// spectralFeatures derives the scalar feature vector from the magnitude
// workspace. Magnitudes are floored at 1e-12 so the geometric mean and the
// weighted sums stay defined on silent frames.
func (a *Analyzer) spectralFeatures(rms, peak, crest float64) Features {
	feat := Features{RMS: rms, Peak: peak, Crest: crest}

	total := 0.0
	logSum := 0.0
	for _, m := range a.mag {
		v := m + 1e-12
		total += v
		logSum += math.Log(v)
	}
	count := float64(len(a.mag))
	if total > 0 && len(a.freqs) == len(a.mag) {
		weighted := 0.0
		for i, m := range a.mag {
			weighted += a.freqs[i] * (m + 1e-12)
		}
		centroid := weighted / total
		feat.CentroidHz = centroid

		spreadSum := 0.0
		for i, m := range a.mag {
			d := a.freqs[i] - centroid
			spreadSum += d * d * (m + 1e-12)
		}
		feat.BandwidthHz = math.Sqrt(spreadSum / total)

		target := total * rolloffFraction
		cum := 0.0
		rollIndex := len(a.mag) - 1
		for i, m := range a.mag {
			cum += m + 1e-12
			if cum >= target {
				rollIndex = i
				break
			}
		}
		feat.RolloffHz = a.freqs[rollIndex]

		feat.Flatness = math.Exp(logSum/count) / (total/count + 1e-12)
	}

	if len(a.prevSpec) == len(a.mag) {
		rise := 0.0
		for i, m := range a.mag {
			if d := m - a.prevSpec[i]; d > 0 {
				rise += d
			}
		}
		feat.Flux = rise / (total + 1e-9)
	}
	return feat
}

// rebuild recomputes the window, FFT plan, frequency map, bin-to-MIDI map
// and band slices for a new frame length or sample rate.
func (a *Analyzer) rebuild(n int, sampleRate float64) {
	a.fftSize = n
	a.fft = fourier.NewFFT(n)
	a.prevSpec = nil

	a.win = make([]float64, n)
	for i := range a.win {
		a.win[i] = 1.0
	}
	window.Hann(a.win)

	a.input = make([]float64, n)
	bins := n/2 + 1
	a.mag = make([]float64, bins)

	freqs := make([]float64, bins)
	binMIDI := make([]int, bins)
	for i := range freqs {
		freqs[i] = float64(i) * sampleRate / float64(n)
		binMIDI[i] = midiForFrequency(freqs[i])
	}

	a.mu.Lock()
	a.sampleRate = sampleRate
	a.freqs = freqs
	a.binMIDI = binMIDI
	a.bandBins = buildBandBins(freqs, sampleRate, a.bars)
	a.mu.Unlock()
}

// midiForFrequency returns the nearest MIDI note number for a frequency,
// or -1 for non-positive frequencies (the DC bin).
func midiForFrequency(hz float64) int {
	if hz <= 0 {
		return -1
	}
	return int(math.Round(69 + 12*math.Log2(hz/440.0)))
}

// buildBandBins partitions the spectrum bins into bars log-spaced bands
// between 40 Hz and min(Nyquist, 16 kHz). Empty slices are widened to at
// least one bin and clamped to the spectrum.
func buildBandBins(freqs []float64, sampleRate float64, bars int) []binRange {
	nyquist := sampleRate / 2.0
	high := math.Min(nyquist, bandHighHz)
	low := bandLowHz

	edges := make([]float64, bars+1)
	if high <= low {
		for i := range edges {
			edges[i] = float64(i) / float64(bars) * nyquist
		}
	} else {
		ratio := high / low
		for i := range edges {
			edges[i] = low * math.Pow(ratio, float64(i)/float64(bars))
		}
	}

	ranges := make([]binRange, bars)
	for i := 0; i < bars; i++ {
		start := sort.SearchFloat64s(freqs, edges[i])
		end := sort.Search(len(freqs), func(j int) bool { return freqs[j] > edges[i+1] })
		if end <= start {
			end = start + 1
			if end > len(freqs) {
				end = len(freqs)
			}
		}
		if start >= len(freqs) {
			start = len(freqs) - 1
			if start < 0 {
				start = 0
			}
			end = len(freqs)
		}
		ranges[i] = binRange{start: start, end: end}
	}
	return ranges
}

// Levels returns the current normalized band levels. Returns all zeros if
// the last analyzed frame is older than the staleness window.
func (a *Analyzer) Levels() []float64 {
	a.mu.Lock()
	levels := make([]float64, len(a.levels))
	copy(levels, a.levels)
	lastUpdate := a.lastUpdate
	a.mu.Unlock()

	if lastUpdate.IsZero() || time.Since(lastUpdate) > staleAfter {
		return make([]float64, a.bars)
	}
	return levels
}

// FeatureVector returns a copy of the latest scalar features.
func (a *Analyzer) FeatureVector() Features {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.features
}
