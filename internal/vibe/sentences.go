package vibe

import (
	"strings"
	"unicode"
)

// SplitSentences breaks text on terminal punctuation followed by whitespace, and on
// line breaks. Each sentence is a separate emotional burst.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" && hasLetterOrDigit(s) {
			out = append(out, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; {
		case r == '\n' || r == '\r':
			flush(i)
			start = i + 1
		case r == '.' || r == '!' || r == '?' || r == '…':
			// keep runs like "?!" or "..." with their sentence
			j := i + 1
			for j < len(runes) && strings.ContainsRune(".!?…\"')", runes[j]) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				flush(j)
			}
			i = j - 1
		}
	}
	flush(len(runes))
	return out
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
