package app

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/brainwavecollective/vibe-eyes/internal/anchors"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TranscriptResult is the pipeline result plus service-level counters.
type TranscriptResult struct {
	vibe.Result
	ID              uuid.UUID `json:"id"`
	TranscriptCount int64     `json:"transcript_count"`
	ContextWords    int       `json:"context_words"`
}

// Status is the service-level view served on /status.
type Status struct {
	domain.Snapshot
	TranscriptCount int64         `json:"transcript_count"`
	ContextWords    int           `json:"context_words"`
	Climate         ClimateStatus `json:"climate"`
}

// Service is the application layer. It orchestrates the pipeline and the optional
// collaborators around it.
type Service struct {
	pipeline    *vibe.Pipeline
	history     domain.HistoryRepository
	climate     *ClimateUpdater
	words       *WordBuffer
	clock       clockwork.Clock
	transcripts atomic.Int64
}

// NewService creates the application layer service.
// history and climate may be nil when those features are disabled.
func NewService(pipeline *vibe.Pipeline, words *WordBuffer, history domain.HistoryRepository, climate *ClimateUpdater, clock clockwork.Clock) *Service {
	if words == nil {
		words = NewWordBuffer(defaultContextWords)
	}
	return &Service{
		pipeline: pipeline,
		history:  history,
		climate:  climate,
		words:    words,
		clock:    clock,
	}
}

// SubmitTranscript runs one transcript through the pipeline.
func (s *Service) SubmitTranscript(ctx context.Context, req vibe.Request) (*TranscriptResult, error) {
	res, err := s.pipeline.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &TranscriptResult{
		Result:          res,
		ID:              uuid.New(),
		TranscriptCount: s.transcripts.Add(1),
		ContextWords:    s.words.Append(req.Text),
	}

	if s.climate != nil && !res.EmptySignal {
		s.climate.MarkPending()
	}
	s.recordHistory(ctx, out, req.Text)

	slog.InfoContext(ctx, "Transcript processed",
		"transcript", out.TranscriptCount,
		"sentences", len(res.Sentences),
		"empty_signal", res.EmptySignal,
		"anchor", res.Trace.Anchor.Anchor.Name,
		"line", strings.TrimSpace(res.Frame.Line),
	)
	return out, nil
}

func (s *Service) recordHistory(ctx context.Context, res *TranscriptResult, text string) {
	if s.history == nil {
		return
	}
	entry := domain.HistoryEntry{
		ID:          res.ID,
		ReceivedAt:  s.clock.Now(),
		Text:        text,
		Sentences:   len(res.Sentences),
		Influence:   res.InfluenceUsed,
		Natural:     res.Trace.Natural,
		Final:       res.Frame.Vibe,
		AnchorName:  res.Trace.Anchor.Anchor.Name,
		EmptySignal: res.EmptySignal,
	}
	if err := s.history.Record(ctx, entry); err != nil {
		slog.WarnContext(ctx, "Failed to record history", "id", res.ID.String(), "error", err)
	}
}

// Status returns the current snapshot and counters.
func (s *Service) Status() Status {
	st := Status{
		Snapshot:        s.pipeline.Status(),
		TranscriptCount: s.transcripts.Load(),
		ContextWords:    s.words.Len(),
	}
	if s.climate != nil {
		st.Climate = s.climate.Status()
	}
	return st
}

// Reset performs a full-influence reset of momentum.
func (s *Service) Reset(ctx context.Context) domain.Frame {
	return s.pipeline.Reset(ctx)
}

// Anchors lists the palette with its per-component statistics.
func (s *Service) Anchors() ([]domain.Anchor, anchors.Stats) {
	list := s.pipeline.Matcher().Anchors()
	stats, err := anchors.Summarize(list)
	if err != nil {
		// the matcher never holds an empty palette
		slog.Error("Failed to summarize anchors", "error", err)
	}
	return list, stats
}

// Nearest returns the k anchors closest to v.
func (s *Service) Nearest(v domain.Vector, k int) []domain.Match {
	return s.pipeline.Matcher().Nearest(v, k)
}

// History returns the most recent processed transcripts.
func (s *Service) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if s.history == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return s.history.Recent(ctx, limit)
}
