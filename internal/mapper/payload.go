// SPDX-License-Identifier: MIT
package mapper

import "strings"

// Mode selects the per-parameter output ranges of the mapper.
type Mode int

const (
	ModeFocus Mode = iota
	ModeHyper
	ModeMinimal
)

// ParseMode maps a mode name to a Mode; unrecognized input is Focus.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hyper":
		return ModeHyper
	case "minimal":
		return ModeMinimal
	default:
		return ModeFocus
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHyper:
		return "hyper"
	case ModeMinimal:
		return "minimal"
	default:
		return "focus"
	}
}

// Params is the motion-parameter block of a payload. All float fields are
// multipliers around 1.0; the counts are absolute object counts.
type Params struct {
	NodeSpeed   float64 `json:"nodeSpeed"`
	ShooterRate float64 `json:"shooterRate"`
	CometRate   float64 `json:"cometRate"`
	Dust        float64 `json:"dust"`
	LinkAlpha   float64 `json:"linkAlpha"`
	CamSpeed    float64 `json:"camSpeed"`
	Nebula      float64 `json:"nebula"`
	StarAlpha   float64 `json:"starAlpha"`
	LinkDist    float64 `json:"linkDist"`
	NodeCount   int     `json:"nodeCount"`
	StarCount   int     `json:"starCount"`
}

// Palette is the color descriptor block. Hue is degrees in [0,360).
type Palette struct {
	Hue    float64 `json:"hue"`
	Mix    float64 `json:"mix"`
	Pulse  float64 `json:"pulse"`
	Vivid  float64 `json:"vivid"`
	Rest   float64 `json:"rest"`
	Spread float64 `json:"spread"`
}

// Payload is the published artifact: one immutable animation-parameter set
// built per publish tick.
type Payload struct {
	Params     Params    `json:"params"`
	Palette    Palette   `json:"palette"`
	Bands      []float64 `json:"bands"`
	Energy     float64   `json:"energy"`
	Punch      float64   `json:"punch"`
	Complexity float64   `json:"complexity"`
	Flow       float64   `json:"flow"`
	Warmth     float64   `json:"warmth"`
	Air        float64   `json:"air"`
	NoteLevels []float64 `json:"noteLevels"`
}

// ResetPayload is the fixed neutral payload published when audio reactivity
// is disabled: every multiplier at 1.0, default counts, zeroed palette.
func ResetPayload() *Payload {
	return &Payload{
		Params: Params{
			NodeSpeed:   1.0,
			ShooterRate: 1.0,
			CometRate:   1.0,
			Dust:        1.0,
			LinkAlpha:   1.0,
			CamSpeed:    1.0,
			Nebula:      1.0,
			StarAlpha:   1.0,
			LinkDist:    1.0,
			NodeCount:   120,
			StarCount:   900,
		},
		Bands:      []float64{},
		NoteLevels: []float64{},
	}
}
