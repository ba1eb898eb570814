// Package anchors loads the cinematic mood palette: the fixed set of reference
// points the matcher snaps amplified vectors toward.
package anchors

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed anchors.yaml
var embedded []byte

type document struct {
	Anchors []entry `yaml:"anchors"`
}

type entry struct {
	Name     string    `yaml:"name"`
	Source   string    `yaml:"source"`
	Position []float64 `yaml:"position"`
	Color    []int     `yaml:"color"`
}

// Default returns the embedded palette.
func Default() ([]domain.Anchor, error) {
	return Parse(embedded)
}

// Load reads a palette from path, or the embedded palette when path is empty.
func Load(path string) ([]domain.Anchor, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read anchors file: %w", err)
	}
	anchors, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return anchors, nil
}

// Parse decodes and validates a YAML palette. The returned slice keeps file order,
// which is the tie-break order for nearest-neighbor lookups.
func Parse(data []byte) ([]domain.Anchor, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse anchors: %w", err)
	}
	if len(doc.Anchors) == 0 {
		return nil, domain.ErrEmptyDataset
	}

	seen := make(map[string]int, len(doc.Anchors))
	anchors := make([]domain.Anchor, 0, len(doc.Anchors))
	for i, e := range doc.Anchors {
		a, err := e.toAnchor()
		if err != nil {
			return nil, fmt.Errorf("anchor %d (%q): %w", i, e.Name, err)
		}
		if prev, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("anchor %d (%q): %w: duplicate of anchor %d", i, a.Name, domain.ErrInvalidAnchor, prev)
		}
		seen[a.Name] = i
		anchors = append(anchors, a)
	}
	return anchors, nil
}

func (e entry) toAnchor() (domain.Anchor, error) {
	if e.Name == "" {
		return domain.Anchor{}, fmt.Errorf("%w: missing name", domain.ErrInvalidAnchor)
	}
	if len(e.Position) != domain.Dimensions {
		return domain.Anchor{}, fmt.Errorf("%w: position has %d components, want %d", domain.ErrInvalidAnchor, len(e.Position), domain.Dimensions)
	}
	if len(e.Color) != 3 {
		return domain.Anchor{}, fmt.Errorf("%w: color has %d channels, want 3", domain.ErrInvalidAnchor, len(e.Color))
	}

	a := domain.Anchor{Name: e.Name, Source: e.Source}
	for i, x := range e.Position {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return domain.Anchor{}, fmt.Errorf("%w: %s %v outside [0,1]", domain.ErrInvalidAnchor, domain.ComponentName(i), x)
		}
		a.Position[i] = x
	}
	for i, c := range e.Color {
		if c < 0 || c > 255 {
			return domain.Anchor{}, fmt.Errorf("%w: color channel %d value %d outside [0,255]", domain.ErrInvalidAnchor, i, c)
		}
		a.Color[i] = uint8(c)
	}
	return a, nil
}

// Stats summarizes the palette per component.
type Stats struct {
	Count int           `json:"count"`
	Mean  domain.Vector `json:"mean"`
	Min   domain.Vector `json:"min"`
	Max   domain.Vector `json:"max"`
}

// Summarize computes per-component statistics over anchors.
func Summarize(anchors []domain.Anchor) (Stats, error) {
	if len(anchors) == 0 {
		return Stats{}, domain.ErrEmptyDataset
	}
	s := Stats{
		Count: len(anchors),
		Min:   domain.Uniform(math.Inf(1)),
		Max:   domain.Uniform(math.Inf(-1)),
	}
	for _, a := range anchors {
		s.Mean = s.Mean.Add(a.Position)
		for i, x := range a.Position {
			s.Min[i] = math.Min(s.Min[i], x)
			s.Max[i] = math.Max(s.Max[i], x)
		}
	}
	s.Mean = s.Mean.Scale(1 / float64(len(anchors)))
	return s, nil
}

// IsConfigError reports whether err came from a malformed or empty palette.
func IsConfigError(err error) bool {
	return errors.Is(err, domain.ErrEmptyDataset) || errors.Is(err, domain.ErrInvalidAnchor)
}
