package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimensions is the number of components in a VAD+CC vector.
const Dimensions = 5

// Component indexes, in wire order.
const (
	Valence = iota
	Arousal
	Dominance
	Complexity
	Coherence
)

var componentNames = [Dimensions]string{"valence", "arousal", "dominance", "complexity", "coherence"}

// ComponentName returns the lowercase name of component i.
func ComponentName(i int) string {
	if i < 0 || i >= Dimensions {
		return "unknown"
	}
	return componentNames[i]
}

// Vector is a VAD+CC emotional state: valence, arousal, dominance, complexity, coherence.
// Output vectors are bounded to [0,1]; deviations (momentum, deltas) may be negative.
type Vector [Dimensions]float64

// Neutral is the center of the VAD+CC space.
var Neutral = Uniform(0.5)

// Uniform returns a vector with every component set to x.
func Uniform(x float64) Vector {
	var v Vector
	for i := range v {
		v[i] = x
	}
	return v
}

func (v Vector) Add(o Vector) Vector {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

func (v Vector) Sub(o Vector) Vector {
	for i := range v {
		v[i] -= o[i]
	}
	return v
}

func (v Vector) Scale(s float64) Vector {
	for i := range v {
		v[i] *= s
	}
	return v
}

// Mix returns v*(1-t) + o*t. The endpoints are exact: t=0 yields v and t=1 yields o.
func (v Vector) Mix(o Vector, t float64) Vector {
	for i := range v {
		v[i] = v[i]*(1-t) + o[i]*t
	}
	return v
}

// Clamp bounds every component into [lo, hi].
func (v Vector) Clamp(lo, hi float64) Vector {
	for i := range v {
		v[i] = Clamp(v[i], lo, hi)
	}
	return v
}

// Norm is the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// WeightedDistance returns sqrt(Σ w_i (v_i - o_i)^2).
func (v Vector) WeightedDistance(o, w Vector) float64 {
	var sum float64
	for i := range v {
		d := v[i] - o[i]
		sum += w[i] * d * d
	}
	return math.Sqrt(sum)
}

// InUnitCube reports whether every component is a finite number in [0,1].
func (v Vector) InUnitCube() bool {
	for _, x := range v {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return false
		}
	}
	return true
}

// Finite reports whether no component is NaN or infinite.
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest absolute component.
func (v Vector) MaxAbs() float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// String renders the vector with the short component labels used in logs.
func (v Vector) String() string {
	return fmt.Sprintf("V:%.3f A:%.3f D:%.3f Cx:%.3f Co:%.3f", v[0], v[1], v[2], v[3], v[4])
}

// ParseVector parses five comma- or space-separated floats.
func ParseVector(s string) (Vector, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != Dimensions {
		return Vector{}, fmt.Errorf("expected %d components, got %d", Dimensions, len(fields))
	}
	var v Vector
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Vector{}, fmt.Errorf("component %s: %w", ComponentName(i), err)
		}
		v[i] = x
	}
	return v, nil
}

// Clamp bounds x into [lo, hi]. NaN is mapped to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
