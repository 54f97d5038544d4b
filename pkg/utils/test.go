// Package utils holds shared test helpers: synthetic waveform generators
// and a capturing event sink.
package utils

import (
	"math"
	"sync"
)

// CapturingTransport implements the transport.Transport interface for
// testing. Sent values are retained for inspection instead of transmitted.
// Sends may come from multiple goroutines; read Sent only after they join.
type CapturingTransport struct {
	mu   sync.Mutex
	Sent []any
}

// Send records the value and always succeeds.
func (c *CapturingTransport) Send(data any) error {
	c.mu.Lock()
	c.Sent = append(c.Sent, data)
	c.mu.Unlock()
	return nil
}

// Close is a no-op.
func (c *CapturingTransport) Close() error {
	return nil
}

// GenerateSineWave produces size mono samples of a pure tone at the given
// frequency, amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateComplexWave produces a 440 Hz fundamental with two harmonics,
// useful for exercising centroid and band aggregation.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
	}
	return buffer
}

// FindPeakIndex returns the index of the largest value in values[start..end].
func FindPeakIndex(values []float64, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
