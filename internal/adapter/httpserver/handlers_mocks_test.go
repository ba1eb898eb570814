package httpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/brainwavecollective/vibe-eyes/internal/anchors"
	"github.com/brainwavecollective/vibe-eyes/internal/app"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/config"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// --- Mock implementations ---

type mockAppService struct {
	submitTranscriptFn func(ctx context.Context, req vibe.Request) (*app.TranscriptResult, error)
	statusFn           func() app.Status
	resetFn            func(ctx context.Context) domain.Frame
	anchorsFn          func() ([]domain.Anchor, anchors.Stats)
	nearestFn          func(v domain.Vector, k int) []domain.Match
	historyFn          func(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

func (m *mockAppService) SubmitTranscript(ctx context.Context, req vibe.Request) (*app.TranscriptResult, error) {
	if m.submitTranscriptFn != nil {
		return m.submitTranscriptFn(ctx, req)
	}
	line := "VIBE 0.5 0.5 0.5 0.5 0.5\n"
	return &app.TranscriptResult{
		Result: vibe.Result{
			Frame:         domain.Frame{Vibe: domain.Neutral, Line: line, Cause: domain.CauseTranscript},
			InfluenceUsed: 0.15,
		},
		ID:              uuid.New(),
		TranscriptCount: 1,
	}, nil
}

func (m *mockAppService) Status() app.Status {
	if m.statusFn != nil {
		return m.statusFn()
	}
	return app.Status{Snapshot: domain.Snapshot{LastVibe: domain.Neutral, Baseline: domain.Neutral}}
}

func (m *mockAppService) Reset(ctx context.Context) domain.Frame {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return domain.Frame{Vibe: domain.Neutral, Line: "VIBE 0.5 0.5 0.5 0.5 0.5\n", Cause: domain.CauseReset}
}

func (m *mockAppService) Anchors() ([]domain.Anchor, anchors.Stats) {
	if m.anchorsFn != nil {
		return m.anchorsFn()
	}
	return nil, anchors.Stats{}
}

func (m *mockAppService) Nearest(v domain.Vector, k int) []domain.Match {
	if m.nearestFn != nil {
		return m.nearestFn(v, k)
	}
	return nil
}

func (m *mockAppService) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, limit)
	}
	return nil, domain.ErrHistoryDisabled
}

type recordingErrors struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingErrors) RecordError(errType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, errType)
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		MaxTextBytes:   64,
		RateLimit:      1000,
		RateLimitBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()
	return NewServer(testConfig(), app, opts...)
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware(nil)(handler)(c)
}
