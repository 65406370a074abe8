package risk

import (
	"fmt"
	"strings"
)

type Mode int

const (
	// ModeLegacy divides scores above 1 by 100 and does nothing else.
	// Scores above 100 stay above 1 and negative scores pass through.
	ModeLegacy Mode = iota
	// ModeClamp applies the legacy rule, then clamps into [0, 1].
	ModeClamp
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return ModeLegacy, nil
	case "clamp":
		return ModeClamp, nil
	}
	return ModeLegacy, fmt.Errorf("unknown normalization mode %q", s)
}

func (m Mode) String() string {
	if m == ModeClamp {
		return "clamp"
	}
	return "legacy"
}

// Normalize maps a raw model score onto a probability. Models trained on
// percentage labels emit values in (1, 100]; those are rescaled.
func Normalize(raw float64, mode Mode) float64 {
	p := raw
	if p > 1 {
		p = p / 100.0
	}
	if mode == ModeClamp {
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
	}
	return p
}
