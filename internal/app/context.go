package app

import (
	"strings"
	"sync"
)

const (
	defaultContextWords = 200
	defaultClimateWords = 100
)

// WordBuffer keeps the most recent words seen across transcripts.
type WordBuffer struct {
	mu    sync.Mutex
	words []string
	next  int
	full  bool
}

// NewWordBuffer creates a buffer holding at most capacity words.
func NewWordBuffer(capacity int) *WordBuffer {
	if capacity <= 0 {
		capacity = defaultContextWords
	}
	return &WordBuffer{words: make([]string, capacity)}
}

// Append adds the words of text and returns the number of words held.
func (b *WordBuffer) Append(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range strings.Fields(text) {
		b.words[b.next] = w
		b.next++
		if b.next == len(b.words) {
			b.next = 0
			b.full = true
		}
	}
	return b.lenLocked()
}

func (b *WordBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

func (b *WordBuffer) lenLocked() int {
	if b.full {
		return len(b.words)
	}
	return b.next
}

// Last returns up to n of the newest words, oldest first, joined by spaces.
func (b *WordBuffer) Last(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.lenLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]string, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.words)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.words[(start+i)%len(b.words)])
	}
	return strings.Join(out, " ")
}
