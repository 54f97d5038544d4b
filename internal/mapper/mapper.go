// SPDX-License-Identifier: MIT
/*
Package mapper combines smoothed band levels, spectral features and elapsed
time into a bounded animation-parameter set and palette descriptor. It is
pure state-machine math: no I/O, no goroutines; the controller drives it
once per publish tick.
*/
package mapper

import (
	"math"
	"sync"

	"reactive/internal/analysis"
)

// Smoothing coefficients for the perceptual channels and output parameters.
const (
	bandAttack  = 0.45
	bandRelease = 0.2

	paramAttack  = 0.22
	paramRelease = 0.14
	countAttack  = 0.18
	countRelease = 0.08

	// pulseDecay is the per-tick decay of the impulsive pulse envelope.
	pulseDecay = 0.86

	// Drift time constants for the slow centroid tracker and the 2-D tonal
	// anchor, in seconds.
	centroidTau = 6.0
	anchorTau   = 14.0

	// calmHue is the anchor the hue is pulled toward on near-silence.
	calmHue = 215.0
)

// noteHues are the 12 fixed hue anchors, one per pitch class, 30° apart.
var noteHues = [12]float64{0, 30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330}

// signalBank holds one attack/release filter per tracked perceptual channel.
// The channel set is fixed, so this is a struct of named fields rather than
// a keyed map.
type signalBank struct {
	avg, low, mid, high, peak              analysis.Smoother
	energy, complexity, warmth, air, punch analysis.Smoother
}

// paramBank holds one filter per output parameter. These seed from the
// first computed value so an engine start does not sweep every parameter in
// from zero.
type paramBank struct {
	nodeSpeed, shooterRate, cometRate, dust, linkAlpha analysis.Smoother
	camSpeed, nebula, starAlpha, linkDist              analysis.Smoother
	nodeCount, starCount                               analysis.Smoother
}

func newParamBank() paramBank {
	var b paramBank
	for _, s := range []*analysis.Smoother{
		&b.nodeSpeed, &b.shooterRate, &b.cometRate, &b.dust, &b.linkAlpha,
		&b.camSpeed, &b.nebula, &b.starAlpha, &b.linkDist,
		&b.nodeCount, &b.starCount,
	} {
		s.SeedFirst = true
	}
	return b
}

// Mapper is the feature-to-parameter mapping core. A mutex serializes
// Compute against Reset; the publish loop computes while command handlers
// may reset the session.
type Mapper struct {
	mu sync.Mutex

	signals signalBank
	params  paramBank
	bands   analysis.VectorSmoother

	centroid   float64 // slow-drifting normalized spectral centroid
	anchorX    float64 // 2-D unit-vector tonal anchor
	anchorY    float64
	prevLevels []float64
	prevAvgRaw float64
	pulse      float64
	keyIndex   int
}

func NewMapper() *Mapper {
	m := &Mapper{}
	m.Reset()
	return m
}

// Reset clears all smoothing and drift state. Called whenever a capture
// session stops or restarts.
func (m *Mapper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = signalBank{}
	m.params = newParamBank()
	m.bands = analysis.VectorSmoother{}
	m.centroid = 0.5
	m.anchorX, m.anchorY = 1.0, 0.0
	m.prevLevels = nil
	m.prevAvgRaw = 0
	m.pulse = 0
	m.keyIndex = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// logNorm maps a positive value onto [0,1] logarithmically between lo and hi.
func logNorm(value, lo, hi float64) float64 {
	if value <= 0 || hi <= lo {
		return 0
	}
	return clamp01((math.Log(value) - math.Log(lo)) / (math.Log(hi) - math.Log(lo)))
}

// wrap360 normalizes degrees into [0,360).
func wrap360(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// mixHue blends from hue a toward hue b by t along the shortest circular arc.
func mixHue(a, b, t float64) float64 {
	delta := math.Mod(b-a+540.0, 360.0) - 180.0
	return wrap360(a + delta*t)
}

// Compute maps one tick of analysis output into an animation-parameter set.
// levels are the raw band levels in [0,1], dt is the elapsed wall-clock time
// since the previous tick in seconds. Returns nil when there are no levels.
func (m *Mapper) Compute(levels []float64, feat analysis.Features, noteLevels []float64, mode Mode, dt float64) *Payload {
	if len(levels) == 0 {
		return nil
	}
	if dt < 0 {
		dt = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bands := make([]float64, len(levels))
	for i, v := range levels {
		bands[i] = clamp01(v)
	}
	bands = m.bands.Smooth(bands, bandAttack, bandRelease)

	// Coarse band statistics over the smoothed vector.
	peakRaw, total := 0.0, 0.0
	for _, v := range bands {
		total += v
		if v > peakRaw {
			peakRaw = v
		}
	}
	avgRaw := total / float64(len(bands))

	third := len(bands) / 3
	if third < 1 {
		third = 1
	}
	lowRaw := sliceMean(bands, 0, third, third)
	midRaw := sliceMean(bands, third, 2*third, third)
	highDiv := len(bands) - 2*third
	if highDiv < 1 {
		highDiv = 1
	}
	highRaw := sliceMean(bands, 2*third, len(bands), highDiv)

	// avg and peak are tracked for state continuity even though the tick
	// below derives energy and pulse from the raw values.
	m.signals.avg.Smooth(avgRaw, 0.3, 0.12)
	m.signals.peak.Smooth(peakRaw, 0.35, 0.18)
	low := m.signals.low.Smooth(lowRaw, 0.32, 0.15)
	mid := m.signals.mid.Smooth(midRaw, 0.3, 0.14)
	high := m.signals.high.Smooth(highRaw, 0.32, 0.15)

	// Normalized Shannon entropy of the band distribution: 0 when one band
	// dominates, 1 when uniform.
	entropy := 0.0
	if total > 1e-6 && len(bands) > 1 {
		inv := 1.0 / total
		entSum := 0.0
		for _, v := range bands {
			p := v * inv
			if p > 1e-9 {
				entSum -= p * math.Log(p)
			}
		}
		entropy = entSum / math.Log(float64(len(bands)))
	}
	entropy = clamp01(entropy)

	// Flux: the larger of spectral flux and the level-based rise.
	fluxLevels := 0.0
	if m.prevLevels != nil && len(m.prevLevels) == len(bands) {
		rise := 0.0
		for i, v := range bands {
			if v > m.prevLevels[i] {
				rise += v - m.prevLevels[i]
			}
		}
		fluxLevels = rise / (total + 1e-6)
	}
	m.prevLevels = append(m.prevLevels[:0], bands...)
	flux := math.Max(feat.Flux, fluxLevels)

	// Stability (inverse of frame-to-frame change) and rest (quietness).
	delta := math.Abs(avgRaw - m.prevAvgRaw)
	m.prevAvgRaw = avgRaw
	stability := clamp01(1.0 - delta/0.05)
	rest := clamp01((0.05 - avgRaw) / 0.05)

	centroidNorm := logNorm(feat.CentroidHz, 80, 12000)
	bandwidthNorm := logNorm(feat.BandwidthHz, 80, 9000)
	rolloffNorm := logNorm(feat.RolloffHz, 150, 15000)
	flatness := clamp01(feat.Flatness)

	energy := m.signals.energy.Smooth(avgRaw, 0.3, 0.12)
	complexity := m.signals.complexity.Smooth(math.Max(entropy, flatness), 0.28, 0.12)
	warmth := m.signals.warmth.Smooth(1.0-centroidNorm, 0.2, 0.1)
	air := m.signals.air.Smooth(math.Max(centroidNorm, high), 0.22, 0.12)

	crestNorm := clamp01((feat.Crest - 1.0) / 6.0)
	fluxNorm := clamp01(flux * 2.2)
	punchRaw := math.Max(fluxNorm, crestNorm*0.8)
	punch := m.signals.punch.Smooth(punchRaw, 0.4, 0.18)

	// Quiet passages pull energy and punch down without touching filter state.
	energy *= 1.0 - rest*0.65
	punch *= 1.0 - rest*0.85

	movement := clamp01(energy*0.75 + mid*0.2 + punch*0.35)
	density := clamp01(energy*0.6 + complexity*0.45)

	// Slow spectral-centroid tracker.
	alphaCentroid := 0.0
	if dt > 0 {
		alphaCentroid = 1.0 - math.Exp(-dt/centroidTau)
	}
	m.centroid += (centroidNorm - m.centroid) * alphaCentroid

	// Tonal anchor: a unit vector rotating toward the angle implied by the
	// centroid; drift speeds up with complexity and freezes near silence.
	driftScale := (0.2 + 0.8*complexity) * (1.0 - rest*0.9)
	alphaAnchor := 0.0
	if dt > 0 {
		alphaAnchor = (1.0 - math.Exp(-dt/anchorTau)) * driftScale
	}
	targetAngle := math.Mod(m.centroid, 1.0) * 2 * math.Pi
	targetX, targetY := math.Cos(targetAngle), math.Sin(targetAngle)
	mixX := m.anchorX + (targetX-m.anchorX)*alphaAnchor
	mixY := m.anchorY + (targetY-m.anchorY)*alphaAnchor
	norm := math.Hypot(mixX, mixY)
	if norm == 0 {
		norm = 1
	}
	m.anchorX, m.anchorY = mixX/norm, mixY/norm

	r := rangesFor(mode)
	nodeSpeed := r.nodeSpeed.at(movement)
	shooterRate := r.shooterRate.at(high)
	cometRate := r.cometRate.at(mid)
	dust := r.dust.at(low)
	linkAlpha := r.linkAlpha.at(energy)
	camSpeed := r.camSpeed.at(movement)
	nebula := r.nebula.at(low)
	starAlpha := r.starAlpha.at(high)
	linkDist := r.linkDist.at(mid)
	nodeCount := r.nodeBase + density*r.nodeSpan
	starCount := r.starBase + density*r.starSpan

	// Pulse envelope: rises instantly with punch, decays exponentially, and
	// is scaled down near silence before boosting the motion parameters.
	m.pulse = math.Max(punch, m.pulse*pulseDecay)
	pulse := clamp01(m.pulse) * r.pulseScale * (1.0 - rest*0.9)

	nodeSpeed += pulse * 0.35
	shooterRate += pulse * 0.5
	cometRate += pulse * 0.35
	camSpeed += pulse * 0.4
	linkAlpha += pulse * 0.25

	nodeSpeed = m.params.nodeSpeed.Smooth(clamp(nodeSpeed, 0.1, 2.5), paramAttack, paramRelease)
	shooterRate = m.params.shooterRate.Smooth(clamp(shooterRate, 0.1, 2.5), paramAttack, paramRelease)
	cometRate = m.params.cometRate.Smooth(clamp(cometRate, 0.1, 2.5), paramAttack, paramRelease)
	dust = m.params.dust.Smooth(clamp(dust, 0.1, 2.5), paramAttack, paramRelease)
	linkAlpha = m.params.linkAlpha.Smooth(clamp(linkAlpha, 0.1, 2.0), paramAttack, paramRelease)
	camSpeed = m.params.camSpeed.Smooth(clamp(camSpeed, 0.2, 2.5), paramAttack, paramRelease)
	nebula = m.params.nebula.Smooth(clamp(nebula, 0.2, 3.0), paramAttack, paramRelease)
	starAlpha = m.params.starAlpha.Smooth(clamp(starAlpha, 0.1, 2.5), paramAttack, paramRelease)
	linkDist = m.params.linkDist.Smooth(clamp(linkDist, 0.3, 2.0), paramAttack, paramRelease)
	nodeCountF := m.params.nodeCount.Smooth(clamp(nodeCount, 10, 240), countAttack, countRelease)
	starCountF := m.params.starCount.Smooth(clamp(starCount, 100, 1200), countAttack, countRelease)

	hue := m.computeHue(bands, centroidNorm, warmth, air, low, high, complexity, avgRaw, peakRaw)

	mix := 0.08 + energy*0.36 + complexity*0.25 + punch*0.1
	vivid := 0.15 + energy*0.35 + air*0.35 + complexity*0.25
	mix *= 1.0 - 0.35*stability
	vivid *= 1.0 - 0.3*stability
	mix *= 1.0 - 0.75*rest
	vivid *= 1.0 - 0.85*rest
	mix = clamp(mix, 0, 0.8)
	vivid = clamp01(vivid)

	spread := 8.0 + 18.0*bandwidthNorm + 16.0*complexity + 10.0*air + 6.0*rolloffNorm
	spread += 8.0*air - 6.0*warmth
	spread *= 1.0 - 0.3*rest
	spread = clamp(spread, 6, 60)
	flow := clamp01(0.2 + movement*0.9 + punch*0.4)

	if noteLevels == nil {
		noteLevels = []float64{}
	}
	return &Payload{
		Params: Params{
			NodeSpeed:   nodeSpeed,
			ShooterRate: shooterRate,
			CometRate:   cometRate,
			Dust:        dust,
			LinkAlpha:   linkAlpha,
			CamSpeed:    camSpeed,
			Nebula:      nebula,
			StarAlpha:   starAlpha,
			LinkDist:    linkDist,
			NodeCount:   int(nodeCountF),
			StarCount:   int(starCountF),
		},
		Palette: Palette{
			Hue:    hue,
			Mix:    mix,
			Pulse:  pulse,
			Vivid:  vivid,
			Rest:   rest,
			Spread: spread,
		},
		Bands:      bands,
		Energy:     energy,
		Punch:      punch,
		Complexity: complexity,
		Flow:       flow,
		Warmth:     warmth,
		Air:        air,
		NoteLevels: noteLevels,
	}
}

// computeHue derives the palette hue: a note-hue anchor picked from the
// dominant band, shifted by brightness and warmth, blended toward a mood
// hue from the timbre bias, and pulled toward the calm anchor on silence.
func (m *Mapper) computeHue(bands []float64, centroidNorm, warmth, air, low, high, complexity, avgRaw, peakRaw float64) float64 {
	dominantIndex := 0
	for i, v := range bands {
		if v > bands[dominantIndex] {
			dominantIndex = i
		}
	}
	dominantLevel := bands[dominantIndex]
	spanLen := len(bands) - 1
	if spanLen < 1 {
		spanLen = 1
	}
	m.keyIndex = int(math.Round(float64(dominantIndex)/float64(spanLen)*11)) % 12

	hue := noteHues[m.keyIndex]
	hueShift := (centroidNorm-0.5)*50.0 + (warmth-0.5)*18.0
	hue = wrap360(hue + hueShift)

	timbreBias := clamp((warmth-air)*0.7+(low-high)*0.6, -1, 1)
	moodHue := mixHue(210.0, 28.0, (timbreBias+1.0)*0.5)
	moodMix := clamp(0.22+math.Abs(timbreBias)*0.4+complexity*0.25, 0, 0.85)
	hue = mixHue(hue, moodHue, moodMix)

	if dominantLevel < 0.035 && avgRaw < 0.012 && peakRaw < 0.08 {
		hue = mixHue(hue, calmHue, 0.7)
	}
	return hue
}

func sliceMean(values []float64, start, end, div int) float64 {
	if start > len(values) {
		start = len(values)
	}
	if end > len(values) {
		end = len(values)
	}
	sum := 0.0
	for _, v := range values[start:end] {
		sum += v
	}
	return sum / float64(div)
}
