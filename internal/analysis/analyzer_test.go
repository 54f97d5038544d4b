// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"

	"reactive/internal/audio"
	"reactive/pkg/utils"
)

const (
	testSampleRate  = 48000.0
	testBlockFrames = 2048
)

func sineFrame(t *testing.T, frequency float64) audio.Frame {
	t.Helper()
	return audio.Frame{
		Samples:    utils.GenerateSineWave(testBlockFrames, testSampleRate, frequency),
		SampleRate: testSampleRate,
	}
}

func TestLevelsRange(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(audio.Frame{
		Samples:    utils.GenerateComplexWave(testBlockFrames, testSampleRate),
		SampleRate: testSampleRate,
	})

	levels := a.Levels()
	if len(levels) != 10 {
		t.Fatalf("expected 10 band levels, got %d", len(levels))
	}
	for i, v := range levels {
		if v < 0 || v > 1 {
			t.Errorf("band %d = %f, expected within [0,1]", i, v)
		}
	}
}

func TestLevelsDominantBand(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(sineFrame(t, 440))

	levels := a.Levels()
	peak := utils.FindPeakIndex(levels, 0, len(levels)-1)
	// 440 Hz sits in the lower-middle of the 40 Hz..16 kHz log spacing.
	if peak == 0 || peak >= 7 {
		t.Errorf("440 Hz tone peaked in band %d, expected a lower-middle band", peak)
	}
}

func TestBandPeakDecay(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(sineFrame(t, 440))

	a.mu.Lock()
	loudPeak := a.bandPeak
	a.mu.Unlock()
	if loudPeak <= peakFloor {
		t.Fatalf("expected the loud frame to raise the band peak, got %g", loudPeak)
	}

	// Silent frames may only decay the peak by the fixed factor per frame.
	prev := loudPeak
	for i := 0; i < 5; i++ {
		a.Process(audio.Frame{
			Samples:    make([]float64, testBlockFrames),
			SampleRate: testSampleRate,
		})
		a.mu.Lock()
		current := a.bandPeak
		a.mu.Unlock()
		if current < prev*peakDecay-1e-12 {
			t.Fatalf("peak decayed too fast: %g -> %g", prev, current)
		}
		if current > prev {
			t.Fatalf("silent frame must not raise the peak: %g -> %g", prev, current)
		}
		prev = current
	}
}

func TestStalenessReturnsZeros(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(sineFrame(t, 440))

	a.mu.Lock()
	a.lastUpdate = time.Now().Add(-time.Second)
	a.mu.Unlock()

	for i, v := range a.Levels() {
		if v != 0 {
			t.Errorf("stale band %d = %f, expected 0", i, v)
		}
	}

	notes := a.NoteLevels(NotePitchClass)
	if len(notes) != 12 {
		t.Fatalf("stale note levels should keep expected length, got %d", len(notes))
	}
	for i, v := range notes {
		if v != 0 {
			t.Errorf("stale note bucket %d = %f, expected 0", i, v)
		}
	}
}

func TestSpectralFeaturesOnSine(t *testing.T) {
	a := NewAnalyzer(10)
	frame := sineFrame(t, 440)
	a.Process(frame)

	feat := a.FeatureVector()

	// Amplitude 0.9 sine: RMS = 0.9/sqrt(2), crest = sqrt(2).
	wantRMS := 0.9 / math.Sqrt2
	if math.Abs(feat.RMS-wantRMS) > 0.01 {
		t.Errorf("RMS = %f, expected about %f", feat.RMS, wantRMS)
	}
	if math.Abs(feat.Crest-math.Sqrt2) > 0.05 {
		t.Errorf("crest = %f, expected about %f", feat.Crest, math.Sqrt2)
	}
	if math.Abs(feat.CentroidHz-440) > 60 {
		t.Errorf("centroid = %f Hz, expected near 440", feat.CentroidHz)
	}
	if feat.RolloffHz < 400 || feat.RolloffHz > 600 {
		t.Errorf("rolloff = %f Hz, expected near the tone", feat.RolloffHz)
	}
	// A pure tone is maximally peaked, so flatness stays near zero.
	if feat.Flatness > 0.1 {
		t.Errorf("flatness = %f, expected close to 0 for a pure tone", feat.Flatness)
	}
	// First frame has no flux baseline.
	if feat.Flux != 0 {
		t.Errorf("first-frame flux = %f, expected 0", feat.Flux)
	}
}

func TestFluxRisesOnOnset(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(audio.Frame{
		Samples:    make([]float64, testBlockFrames),
		SampleRate: testSampleRate,
	})
	a.Process(sineFrame(t, 440))

	if feat := a.FeatureVector(); feat.Flux <= 0 {
		t.Errorf("flux after silence-to-tone onset = %f, expected > 0", feat.Flux)
	}
}

func TestMidiForFrequency(t *testing.T) {
	tests := []struct {
		hz       float64
		expected int
	}{
		{440, 69},   // A4
		{880, 81},   // A5
		{220, 57},   // A3
		{261.6, 60}, // middle C
		{0, -1},     // DC bin
		{-5, -1},    // guard
	}

	for _, tt := range tests {
		if got := midiForFrequency(tt.hz); got != tt.expected {
			t.Errorf("midiForFrequency(%f) = %d, expected %d", tt.hz, got, tt.expected)
		}
	}
}

func TestBuildBandBinsCoverage(t *testing.T) {
	n := testBlockFrames
	bins := n/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * testSampleRate / float64(n)
	}

	ranges := buildBandBins(freqs, testSampleRate, 10)
	if len(ranges) != 10 {
		t.Fatalf("expected 10 ranges, got %d", len(ranges))
	}
	for i, r := range ranges {
		if r.end <= r.start {
			t.Errorf("range %d is empty: [%d,%d)", i, r.start, r.end)
		}
		if r.start < 0 || r.end > bins {
			t.Errorf("range %d out of bounds: [%d,%d)", i, r.start, r.end)
		}
		if i > 0 && r.start < ranges[i-1].start {
			t.Errorf("range %d starts before range %d", i, i-1)
		}
	}
}

func TestNoteLevelsPitchClass(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(sineFrame(t, 440))

	notes := a.NoteLevels(NotePitchClass)
	if len(notes) != 12 {
		t.Fatalf("expected 12 pitch classes, got %d", len(notes))
	}
	// 440 Hz is A: MIDI 69, pitch class 9.
	peak := utils.FindPeakIndex(notes, 0, len(notes)-1)
	if peak != 9 {
		t.Errorf("440 Hz peaked in pitch class %d, expected 9 (A)", peak)
	}
	for i, v := range notes {
		if v < 0 || v > 1 {
			t.Errorf("note bucket %d = %f, expected within [0,1]", i, v)
		}
	}
}

func TestNoteBuckets(t *testing.T) {
	tests := []struct {
		mode     NoteMode
		expected int
	}{
		{NotePitchClass, 12},
		{NotePiano, 88},
	}
	for _, tt := range tests {
		if got := NoteBuckets(tt.mode); got != tt.expected {
			t.Errorf("NoteBuckets(%s) = %d, expected %d", tt.mode, got, tt.expected)
		}
	}
	// The wide modes span at least the piano range.
	if got := NoteBuckets(NoteFull); got < 88 {
		t.Errorf("NoteBuckets(full) = %d, expected at least 88", got)
	}
	if got := NoteBuckets(NoteDefault); got < 60 {
		t.Errorf("NoteBuckets(default) = %d, expected at least 60", got)
	}
}

func TestResetClearsState(t *testing.T) {
	a := NewAnalyzer(10)
	a.Process(sineFrame(t, 440))
	a.Reset()

	for i, v := range a.Levels() {
		if v != 0 {
			t.Errorf("band %d after reset = %f, expected 0", i, v)
		}
	}
	if feat := a.FeatureVector(); feat.RMS != 0 || feat.CentroidHz != 0 {
		t.Errorf("features after reset = %+v, expected zero value", feat)
	}
}

func BenchmarkProcess(b *testing.B) {
	a := NewAnalyzer(10)
	frame := audio.Frame{
		Samples:    utils.GenerateComplexWave(testBlockFrames, testSampleRate),
		SampleRate: testSampleRate,
	}
	b.ReportAllocs()
	for b.Loop() {
		a.Process(frame)
	}
}

func TestResetWhileProcessing(t *testing.T) {
	a := NewAnalyzer(10)
	frame := sineFrame(t, 440)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			a.Process(frame)
		}
	}()
	for i := 0; i < 100; i++ {
		a.Reset()
		a.Levels()
	}
	<-done

	a.Process(frame)
	if levels := a.Levels(); len(levels) != 10 {
		t.Fatalf("levels length = %d, expected 10", len(levels))
	}
}
