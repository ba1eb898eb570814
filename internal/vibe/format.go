package vibe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

const (
	// LinePrefix starts every serial output line.
	LinePrefix = "VIBE"
	// DefaultPrecision is the number of decimals kept per component.
	DefaultPrecision = 2
	maxPrecision     = 6
)

// Render formats v as "VIBE v a d cx co\n". Each component is clamped into [0,1],
// rounded to precision decimals and printed in its shortest form, so 0.70 prints as 0.7.
func Render(v domain.Vector, precision int) string {
	if precision <= 0 || precision > maxPrecision {
		precision = DefaultPrecision
	}
	scale := math.Pow(10, float64(precision))

	var b strings.Builder
	b.WriteString(LinePrefix)
	for _, x := range v {
		x = math.Round(domain.Clamp(x, 0, 1)*scale) / scale
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

// ParseLine is the inverse of Render.
func ParseLine(line string) (domain.Vector, error) {
	fields := strings.Fields(line)
	if len(fields) != domain.Dimensions+1 || fields[0] != LinePrefix {
		return domain.Vector{}, fmt.Errorf("malformed vibe line %q", strings.TrimSpace(line))
	}
	var v domain.Vector
	for i, f := range fields[1:] {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Vector{}, fmt.Errorf("malformed %s in vibe line: %w", domain.ComponentName(i), err)
		}
		if x < 0 || x > 1 {
			return domain.Vector{}, fmt.Errorf("%s %v outside [0,1]", domain.ComponentName(i), x)
		}
		v[i] = x
	}
	return v, nil
}
