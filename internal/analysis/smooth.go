// SPDX-License-Identifier: MIT
package analysis

// Smoother is an asymmetric attack/release exponential filter:
//
//	value += (target - value) * alpha
//
// where alpha is the attack coefficient when the target is rising and the
// release coefficient when it is falling. The zero value starts from 0.0,
// which is what the perceptual channels (avg, low, energy, ...) want.
type Smoother struct {
	value  float64
	seeded bool
	// SeedFirst makes the first target pass through unfiltered instead of
	// attacking up from zero. Output parameters use this so an engine start
	// does not animate every value in from the origin.
	SeedFirst bool
}

// Smooth advances the filter toward target and returns the new value.
func (s *Smoother) Smooth(target, attack, release float64) float64 {
	if s.SeedFirst && !s.seeded {
		s.seeded = true
		s.value = target
		return s.value
	}
	s.seeded = true
	alpha := release
	if target > s.value {
		alpha = attack
	}
	s.value += (target - s.value) * alpha
	return s.value
}

// Value returns the current filter state without advancing it.
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset clears the filter back to its initial state.
func (s *Smoother) Reset() {
	s.value = 0
	s.seeded = false
}

// VectorSmoother applies the same attack/release rule element-wise with
// shared coefficients. Used for the band-level vector.
type VectorSmoother struct {
	values []float64
}

// Smooth advances every element toward the corresponding target and returns
// a copy of the new state. If the target length changes (capture restarted
// with a different band count) the state is re-seeded from the targets.
func (v *VectorSmoother) Smooth(targets []float64, attack, release float64) []float64 {
	if len(v.values) != len(targets) {
		v.values = make([]float64, len(targets))
		copy(v.values, targets)
		out := make([]float64, len(targets))
		copy(out, targets)
		return out
	}
	for i, target := range targets {
		alpha := release
		if target > v.values[i] {
			alpha = attack
		}
		v.values[i] += (target - v.values[i]) * alpha
	}
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Reset drops all element state.
func (v *VectorSmoother) Reset() {
	v.values = nil
}
