package vibe

import (
	"context"
	"sync"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

// --- Mock extractor ---

type mockExtractor struct {
	mu        sync.Mutex
	calls     []string
	extractFn func(ctx context.Context, text string) (domain.Reading, error)
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (domain.Reading, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.extractFn != nil {
		return m.extractFn(ctx, text)
	}
	return domain.Reading{Vector: domain.Neutral, Confidence: 1}, nil
}

func (m *mockExtractor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// readingsByText returns a fixed reading per sentence.
func readingsByText(readings map[string]domain.Vector) func(context.Context, string) (domain.Reading, error) {
	return func(_ context.Context, text string) (domain.Reading, error) {
		v, ok := readings[text]
		if !ok {
			return domain.Reading{}, domain.ErrEmptySignal
		}
		return domain.Reading{Vector: v, Confidence: 1}, nil
	}
}

// --- Recording emitter ---

type recordingEmitter struct {
	mu     sync.Mutex
	frames []domain.Frame
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, frame domain.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return r.err
}

func (r *recordingEmitter) all() []domain.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Frame(nil), r.frames...)
}

// --- Recording observer ---

type recordingObserver struct {
	mu       sync.Mutex
	clamped  []string
	outcomes []string
	emitErrs int
}

func (o *recordingObserver) ParameterClamped(param string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clamped = append(o.clamped, param)
}

func (o *recordingObserver) TranscriptProcessed(outcome string, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) FrameEmitted(_ domain.Frame, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.emitErrs++
	}
}

// --- Fixtures ---

func testAnchors() []domain.Anchor {
	return []domain.Anchor{
		{Name: "Neutral Ground", Source: "Film A", Position: domain.Neutral, Color: domain.Color{128, 128, 128}},
		{Name: "Joy", Source: "Film B", Position: domain.Vector{0.9, 0.8, 0.7, 0.4, 0.8}, Color: domain.Color{255, 200, 0}},
		{Name: "Dread", Source: "Film C", Position: domain.Vector{0.1, 0.8, 0.2, 0.6, 0.5}, Color: domain.Color{80, 0, 0}},
		{Name: "Calm", Source: "Film D", Position: domain.Vector{0.7, 0.2, 0.5, 0.3, 0.9}, Color: domain.Color{0, 160, 120}},
	}
}

func ptr(f float64) *float64 { return &f }

func vec(v domain.Vector) []float64 { return v[:] }
