// SPDX-License-Identifier: MIT
package mapper

// span is a linear output range; at(t) interpolates across it.
type span struct {
	lo, hi float64
}

func (s span) at(t float64) float64 {
	return s.lo + (s.hi-s.lo)*t
}

// modeRanges is the per-mode table of output ranges for the motion
// parameters. Hyper strictly dominates Focus which dominates Minimal, so a
// louder mode never produces a calmer parameter for the same input.
type modeRanges struct {
	nodeSpeed   span
	shooterRate span
	cometRate   span
	dust        span
	linkAlpha   span
	camSpeed    span
	nebula      span
	starAlpha   span
	linkDist    span

	nodeBase, nodeSpan float64
	starBase, starSpan float64

	// pulseScale sizes the impulsive boost layered onto the parameters.
	pulseScale float64
}

func rangesFor(mode Mode) modeRanges {
	switch mode {
	case ModeHyper:
		return modeRanges{
			nodeSpeed:   span{0.8, 1.8},
			shooterRate: span{0.35, 1.25},
			cometRate:   span{0.4, 1.15},
			dust:        span{0.9, 2.1},
			linkAlpha:   span{0.85, 1.55},
			camSpeed:    span{0.9, 1.85},
			nebula:      span{1.0, 2.5},
			starAlpha:   span{1.0, 2.1},
			linkDist:    span{1.0, 1.55},
			nodeBase:    120, nodeSpan: 140,
			starBase: 760, starSpan: 640,
			pulseScale: 0.32,
		}
	case ModeMinimal:
		return modeRanges{
			nodeSpeed:   span{0.35, 0.9},
			shooterRate: span{0.12, 0.5},
			cometRate:   span{0.12, 0.45},
			dust:        span{0.45, 1.0},
			linkAlpha:   span{0.4, 0.85},
			camSpeed:    span{0.4, 0.95},
			nebula:      span{0.55, 1.2},
			starAlpha:   span{0.6, 1.25},
			linkDist:    span{0.65, 1.05},
			nodeBase:    60, nodeSpan: 80,
			starBase: 360, starSpan: 360,
			pulseScale: 0.18,
		}
	default: // ModeFocus
		return modeRanges{
			nodeSpeed:   span{0.5, 1.25},
			shooterRate: span{0.25, 0.9},
			cometRate:   span{0.25, 0.85},
			dust:        span{0.7, 1.6},
			linkAlpha:   span{0.6, 1.1},
			camSpeed:    span{0.6, 1.35},
			nebula:      span{0.8, 1.9},
			starAlpha:   span{0.9, 1.8},
			linkDist:    span{0.9, 1.35},
			nodeBase:    90, nodeSpan: 130,
			starBase: 620, starSpan: 520,
			pulseScale: 0.25,
		}
	}
}
