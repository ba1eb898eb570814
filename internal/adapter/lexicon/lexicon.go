// Package lexicon implements the word-level emotion extractor: a VAD lexicon lookup with
// intensity weighting, a Flesch-Kincaid complexity estimate and an adjacent-sentence
// overlap coherence estimate.
package lexicon

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed lexicon.tsv
var embedded []byte

// Lexicon maps lowercase terms to valence, arousal and dominance in [0,1].
type Lexicon struct {
	terms map[string][3]float64
}

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	return Parse(bytes.NewReader(embedded))
}

// Load reads a lexicon file. An empty path selects the embedded lexicon.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads tab-separated "term valence arousal dominance" rows after a header line.
// Scores are in [-1,1] and are mapped to [0,1]. Malformed rows are skipped.
func Parse(r io.Reader) (*Lexicon, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("lexicon is empty")
		}
		return nil, fmt.Errorf("failed to read lexicon header: %w", err)
	}

	terms := make(map[string][3]float64)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read lexicon: %w", err)
		}
		if len(rec) < 4 {
			continue
		}
		var vad [3]float64
		ok := true
		for i := range vad {
			x, perr := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if perr != nil {
				ok = false
				break
			}
			vad[i] = (x + 1) / 2
		}
		if ok {
			terms[strings.ToLower(strings.TrimSpace(rec[0]))] = vad
		}
	}

	if len(terms) == 0 {
		return nil, errors.New("lexicon has no valid entries")
	}
	return &Lexicon{terms: terms}, nil
}

func (l *Lexicon) Len() int { return len(l.terms) }

// Lookup returns the normalized scores of a lowercase term.
func (l *Lexicon) Lookup(term string) ([3]float64, bool) {
	vad, ok := l.terms[term]
	return vad, ok
}
