package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/jonboulle/clockwork"
)

const defaultTickInterval = 100 * time.Millisecond

type ticking interface {
	Tick(ctx context.Context) domain.Frame
}

// DecayTicker drives time-based decay: every interval the pipeline decays momentum
// and re-emits, so the display relaxes toward baseline when no transcripts arrive.
type DecayTicker struct {
	pipeline ticking
	clock    clockwork.Clock
	interval time.Duration
}

func NewDecayTicker(pipeline ticking, clock clockwork.Clock, interval time.Duration) *DecayTicker {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &DecayTicker{pipeline: pipeline, clock: clock, interval: interval}
}

// Run blocks until ctx is cancelled.
func (t *DecayTicker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	slog.Info("Decay ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.pipeline.Tick(ctx)
		}
	}
}
