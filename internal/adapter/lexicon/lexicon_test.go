package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedLexicon(t *testing.T) {
	lex, err := Default()
	require.NoError(t, err)

	assert.Greater(t, lex.Len(), 200)

	vad, ok := lex.Lookup("calm")
	require.True(t, ok)
	assert.InDelta(t, (0.727+1)/2, vad[0], 1e-9)
	assert.InDelta(t, (-0.389+1)/2, vad[1], 1e-9)
	assert.InDelta(t, (0.223+1)/2, vad[2], 1e-9)

	_, ok = lex.Lookup("the")
	assert.False(t, ok)
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	data := "term\tvalence\tarousal\tdominance\n" +
		"Bright\t0.5\t0.0\t-0.5\n" +
		"short\t0.1\n" +
		"broken\tx\t0\t0\n"

	lex, err := Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 1, lex.Len())
	vad, ok := lex.Lookup("bright")
	require.True(t, ok)
	assert.Equal(t, [3]float64{0.75, 0.5, 0.25}, vad)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "lexicon is empty"},
		{"header only", "term\tvalence\tarousal\tdominance\n", "no valid entries"},
		{"all malformed", "term\tv\ta\td\nword\tnope\t0\t0\n", "no valid entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.tsv")
	require.NoError(t, os.WriteFile(path, []byte("term\tv\ta\td\nglow\t1\t1\t1\n"), 0o600))

	lex, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, lex.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.ErrorContains(t, err, "failed to open lexicon file")
}
