package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/jonboulle/clockwork"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockExtractor struct {
	extractFn func(ctx context.Context, text string) (domain.Reading, error)
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (domain.Reading, error) {
	if m.extractFn != nil {
		return m.extractFn(ctx, text)
	}
	return domain.Reading{Vector: domain.Vector{0.9, 0.7, 0.6, 0.5, 0.5}, Confidence: 1}, nil
}

type mockHistory struct {
	mu       sync.Mutex
	entries  []domain.HistoryEntry
	recordFn func(ctx context.Context, entry domain.HistoryEntry) error
}

func (m *mockHistory) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]domain.HistoryEntry, 0, limit)
	for i := len(m.entries) - 1; i >= len(m.entries)-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type mockClimateSource struct {
	mu        sync.Mutex
	texts     []string
	climateFn func(ctx context.Context, text string) (domain.Vector, error)
}

func (m *mockClimateSource) Climate(ctx context.Context, text string) (domain.Vector, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.climateFn != nil {
		return m.climateFn(ctx, text)
	}
	return domain.Vector{0.6, 0.5, 0.5, 0.5, 0.7}, nil
}

func (m *mockClimateSource) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type mockStateStore struct {
	mu      sync.Mutex
	saved   []domain.BlenderState
	loadFn  func(ctx context.Context) (*domain.BlenderState, bool, error)
	saveErr error
}

func (m *mockStateStore) SaveState(_ context.Context, state domain.BlenderState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, state)
	return nil
}

func (m *mockStateStore) LoadState(ctx context.Context) (*domain.BlenderState, bool, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil, false, nil
}

func (m *mockStateStore) saves() []domain.BlenderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BlenderState(nil), m.saved...)
}

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

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// --- Fixtures ---

func newTestPipeline(t testing.TB, clock clockwork.Clock, extractor domain.Extractor, emitter domain.FrameEmitter) *vibe.Pipeline {
	palette := []domain.Anchor{
		{Name: "Neutral Ground", Source: "Film A", Position: domain.Neutral},
		{Name: "Joy", Source: "Film B", Position: domain.Vector{0.9, 0.8, 0.7, 0.4, 0.8}},
	}
	matcher, err := vibe.NewMatcher(palette, domain.Vector{})
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	cfg := vibe.DefaultConfig()
	cfg.Passion = 0
	cfg.Drama = 0
	p, err := vibe.NewPipeline(cfg, vibe.NewBlender(vibe.DefaultBlenderConfig(), clock), matcher, extractor, clock, vibe.WithEmitter(emitter))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p
}
