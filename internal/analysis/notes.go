// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

// NoteMode selects how spectrum magnitude is bucketed onto musical pitch.
type NoteMode string

const (
	// NotePitchClass folds all octaves onto 12 pitch classes (MIDI mod 12).
	NotePitchClass NoteMode = "pitch-class"
	// NotePiano covers the 88-key piano range, MIDI 21..108.
	NotePiano NoteMode = "piano"
	// NoteFull covers the audible range, roughly 20 Hz to 20 kHz.
	NoteFull NoteMode = "full"
	// NoteDefault covers the analyzer's band range, 40 Hz to 16 kHz.
	NoteDefault NoteMode = "default"
)

// notePeakDecay matches the band peak normalizer but runs per note mode so
// switching modes does not inherit an unrelated peak.
const notePeakDecay = 0.97

// noteRange returns the inclusive MIDI range for a bucketed mode.
func noteRange(mode NoteMode) (int, int) {
	switch mode {
	case NotePiano:
		return 21, 108
	case NoteFull:
		low := int(math.Floor(69 + 12*math.Log2(20.0/440.0)))
		high := int(math.Ceil(69 + 12*math.Log2(20000.0/440.0)))
		return low, high
	default:
		low := int(math.Floor(69 + 12*math.Log2(40.0/440.0)))
		high := int(math.Ceil(69 + 12*math.Log2(16000.0/440.0)))
		return low, high
	}
}

// NoteBuckets returns the number of buckets NoteLevels produces for a mode.
func NoteBuckets(mode NoteMode) int {
	if mode == NotePitchClass {
		return 12
	}
	low, high := noteRange(mode)
	if n := high - low + 1; n > 1 {
		return n
	}
	return 1
}

// NoteLevels reprojects the current magnitude spectrum onto musical-pitch
// buckets via a weighted histogram over the precomputed bin-to-MIDI map,
// normalized by a per-mode decaying peak and square-root compressed to
// [0,1]. Returns all zeros when no fresh spectrum is available, matching
// the staleness contract of Levels.
func (a *Analyzer) NoteLevels(mode NoteMode) []float64 {
	count := NoteBuckets(mode)

	a.mu.Lock()
	stale := a.lastUpdate.IsZero() || time.Since(a.lastUpdate) > staleAfter
	if stale || a.spectrum == nil || len(a.binMIDI) != len(a.spectrum) {
		a.mu.Unlock()
		return make([]float64, count)
	}
	spectrum := make([]float64, len(a.spectrum))
	copy(spectrum, a.spectrum)
	binMIDI := make([]int, len(a.binMIDI))
	copy(binMIDI, a.binMIDI)
	a.mu.Unlock()

	values := make([]float64, count)
	if mode == NotePitchClass {
		for i, midi := range binMIDI {
			if midi < 0 {
				continue
			}
			values[((midi%12)+12)%12] += spectrum[i]
		}
	} else {
		low, high := noteRange(mode)
		for i, midi := range binMIDI {
			if midi < low || midi > high {
				continue
			}
			values[midi-low] += spectrum[i]
		}
	}

	rawPeak := 0.0
	for _, v := range values {
		if v > rawPeak {
			rawPeak = v
		}
	}

	a.mu.Lock()
	prev, ok := a.notePeaks[mode]
	if !ok {
		prev = peakFloor
	}
	peak := math.Max(prev*notePeakDecay, rawPeak)
	a.notePeaks[mode] = peak
	a.mu.Unlock()

	if peak <= 1e-9 {
		return make([]float64, count)
	}
	for i, v := range values {
		values[i] = math.Sqrt(math.Min(math.Max(v/peak, 0), 1))
	}
	return values
}
