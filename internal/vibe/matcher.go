package vibe

import (
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

// blendEpsilon keeps inverse-distance weights finite when a query sits on an anchor.
const blendEpsilon = 0.01

// Matcher finds the anchors nearest to a vector under a weighted Euclidean metric.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	anchors []domain.Anchor
	weights domain.Vector
}

// NewMatcher copies anchors and weights. A zero weights vector means uniform weights.
func NewMatcher(anchors []domain.Anchor, weights domain.Vector) (*Matcher, error) {
	if len(anchors) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if weights == (domain.Vector{}) {
		weights = domain.Uniform(1)
	}
	return &Matcher{
		anchors: append([]domain.Anchor(nil), anchors...),
		weights: weights,
	}, nil
}

// Nearest returns the k closest anchors in ascending distance. Equal distances keep
// dataset order. k <= 0 is treated as 1; k larger than the dataset returns every anchor.
func (m *Matcher) Nearest(v domain.Vector, k int) []domain.Match {
	if k <= 0 {
		k = 1
	}
	if k > len(m.anchors) {
		k = len(m.anchors)
	}

	// Insertion into a sorted window of size k; strict less-than keeps earlier anchors
	// ahead of later ones at equal distance.
	best := make([]domain.Match, 0, k)
	for _, a := range m.anchors {
		d := v.WeightedDistance(a.Position, m.weights)
		if len(best) == k && d >= best[k-1].Distance {
			continue
		}
		pos := len(best)
		for pos > 0 && d < best[pos-1].Distance {
			pos--
		}
		if len(best) < k {
			best = append(best, domain.Match{})
		}
		copy(best[pos+1:], best[pos:len(best)-1])
		best[pos] = domain.Match{Anchor: a, Distance: d}
	}
	return best
}

// Target returns the point cinematic pull moves toward: the nearest anchor's position
// for k = 1, otherwise the inverse-distance weighted mean of the k nearest. The first
// returned match is always the single nearest anchor.
func (m *Matcher) Target(v domain.Vector, k int) (domain.Vector, domain.Match) {
	matches := m.Nearest(v, k)
	if len(matches) == 1 {
		return matches[0].Anchor.Position, matches[0]
	}

	var target domain.Vector
	var total float64
	for _, match := range matches {
		w := 1 / (match.Distance + blendEpsilon)
		target = target.Add(match.Anchor.Position.Scale(w))
		total += w
	}
	return target.Scale(1 / total), matches[0]
}

// Anchors returns a copy of the dataset in its original order.
func (m *Matcher) Anchors() []domain.Anchor {
	return append([]domain.Anchor(nil), m.anchors...)
}

func (m *Matcher) Len() int { return len(m.anchors) }

func (m *Matcher) Weights() domain.Vector { return m.weights }
