package vibe

import (
	"fmt"
	"math"
	"strings"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

// Mask selects the components passion gain reshapes.
type Mask [domain.Dimensions]bool

var (
	// MaskVAD reshapes valence, arousal and dominance only.
	MaskVAD = Mask{true, true, true, false, false}
	// MaskAll reshapes every component.
	MaskAll = Mask{true, true, true, true, true}
)

// ParseMask accepts "vad", "vadcc" (or "all") and "none".
func ParseMask(s string) (Mask, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vad":
		return MaskVAD, nil
	case "vadcc", "all":
		return MaskAll, nil
	case "none":
		return Mask{}, nil
	default:
		return Mask{}, fmt.Errorf("unknown passion dimensions %q (want vad, vadcc or none)", s)
	}
}

// PassionGain pushes masked components away from neutral 0.5 with a compressive
// power law on the normalized deviation r = |v-0.5|/0.5:
//
//	r' = r^(1/(1+curve*passion))
//
// Passion 0 is the identity. For passion > 0 the exponent is below 1, so small
// deviations grow proportionally more than large ones, r' stays in [0,1] and the
// direction from neutral is kept. Inputs are clamped to [0,1] first.
func PassionGain(v domain.Vector, passion, curve float64, dims Mask) domain.Vector {
	passion = domain.Clamp(passion, 0, 1)
	curve = math.Max(curve, 0)
	if passion == 0 || curve == 0 {
		return v
	}

	exp := 1 / (1 + curve*passion)
	for i := range v {
		if !dims[i] {
			continue
		}
		x := domain.Clamp(v[i], 0, 1)
		dev := x - 0.5
		if dev == 0 {
			v[i] = x
			continue
		}
		r := math.Pow(math.Abs(dev)/0.5, exp)
		v[i] = domain.Clamp(0.5+math.Copysign(0.5*r, dev), 0, 1)
	}
	return v
}

// CinematicPull interpolates v toward the matcher's target for v:
// v*(1-drama) + target*drama. Drama 0 returns v and drama 1 returns the target.
// The returned match is the single nearest anchor.
func CinematicPull(v domain.Vector, drama float64, m *Matcher, k int) (domain.Vector, domain.Match) {
	target, nearest := m.Target(v, k)
	drama = domain.Clamp(drama, 0, 1)
	switch drama {
	case 0:
		return v, nearest
	case 1:
		return target, nearest
	}
	return v.Mix(target, drama), nearest
}
