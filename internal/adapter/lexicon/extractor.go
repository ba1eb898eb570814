package lexicon

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
)

const (
	unknownWeight     = 0.01
	intensityEpsilon  = 0.01
	singleCoherence   = 0.8
	gradeScale        = 20.0
	defaultComplexity = 0.5
)

// Extractor scores text against a Lexicon. It is safe for concurrent use.
type Extractor struct {
	lex *Lexicon
}

func NewExtractor(lex *Lexicon) *Extractor {
	return &Extractor{lex: lex}
}

// Extract returns the absolute VAD+CC reading of text. Confidence is the share of
// tokens found in the lexicon; text without word tokens yields ErrEmptySignal.
func (e *Extractor) Extract(ctx context.Context, text string) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}

	words := tokenize(text)
	if len(words) == 0 {
		return domain.Reading{}, domain.ErrEmptySignal
	}

	vad, hits := e.vad(words)
	sentences := vibe.SplitSentences(text)

	var v domain.Vector
	v[domain.Valence] = vad[0]
	v[domain.Arousal] = vad[1]
	v[domain.Dominance] = vad[2]
	v[domain.Complexity] = complexity(words, len(sentences))
	v[domain.Coherence] = coherence(sentences)

	return domain.Reading{
		Vector:     v.Clamp(0, 1),
		Confidence: float64(hits) / float64(len(words)),
	}, nil
}

// vad averages lexicon scores weighted by squared intensity, so strongly charged words
// dominate and unknown words barely pull toward neutral.
func (e *Extractor) vad(words []string) ([3]float64, int) {
	var sum [3]float64
	var total float64
	hits := 0
	for _, w := range words {
		scores, ok := e.lex.Lookup(w)
		weight := unknownWeight
		if ok {
			hits++
			intensity := math.Abs(scores[0]-0.5) + math.Abs(scores[1]-0.5) + math.Abs(scores[2]-0.5)
			weight = (intensity + intensityEpsilon) * (intensity + intensityEpsilon)
		} else {
			scores = [3]float64{0.5, 0.5, 0.5}
		}
		for i := range sum {
			sum[i] += scores[i] * weight
		}
		total += weight
	}
	for i := range sum {
		sum[i] /= total
	}
	return sum, hits
}

// complexity is the Flesch-Kincaid grade level scaled into [0,1].
func complexity(words []string, sentences int) float64 {
	if sentences < 1 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	grade := 0.39*float64(len(words))/float64(sentences) + 11.8*float64(syllables)/float64(len(words)) - 15.59
	if math.IsNaN(grade) {
		return defaultComplexity
	}
	return domain.Clamp(grade/gradeScale, 0, 1)
}

// coherence maps the mean cosine similarity of adjacent sentences' word counts into [0,1].
func coherence(sentences []string) float64 {
	if len(sentences) < 2 {
		return singleCoherence
	}
	bags := make([]map[string]float64, len(sentences))
	for i, s := range sentences {
		bags[i] = bagOfWords(tokenize(s))
	}
	var sum float64
	for i := 0; i+1 < len(bags); i++ {
		sum += cosine(bags[i], bags[i+1])
	}
	mean := sum / float64(len(bags)-1)
	return (mean + 1) / 2
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func bagOfWords(words []string) map[string]float64 {
	bag := make(map[string]float64, len(words))
	for _, w := range words {
		bag[w]++
	}
	return bag
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for w, x := range a {
		dot += x * b[w]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// countSyllables approximates English syllables by vowel groups, ignoring a silent final e.
func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
