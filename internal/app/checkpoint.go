package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	defaultCheckpointInterval = 5 * time.Second
	finalCheckpointTimeout    = 3 * time.Second
)

type checkpointable interface {
	State() domain.BlenderState
	Restore(state domain.BlenderState) error
}

// Checkpointer persists blender state periodically and restores it at startup, so a
// restart resumes the previous baseline and momentum.
type Checkpointer struct {
	store    domain.StateStore
	pipeline checkpointable
	clock    clockwork.Clock
	interval time.Duration
	last     domain.BlenderState
}

func NewCheckpointer(store domain.StateStore, pipeline checkpointable, clock clockwork.Clock, interval time.Duration) *Checkpointer {
	if interval <= 0 {
		interval = defaultCheckpointInterval
	}
	return &Checkpointer{store: store, pipeline: pipeline, clock: clock, interval: interval}
}

// Restore loads the last checkpoint, if any. A missing or invalid checkpoint is not fatal.
func (c *Checkpointer) Restore(ctx context.Context) bool {
	state, ok, err := c.store.LoadState(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load checkpoint, starting fresh", "error", err)
		return false
	}
	if !ok {
		slog.InfoContext(ctx, "No checkpoint found, starting fresh")
		return false
	}
	if err := c.pipeline.Restore(*state); err != nil {
		slog.WarnContext(ctx, "Ignoring invalid checkpoint", "error", err)
		return false
	}
	c.last = *state
	slog.InfoContext(ctx, "Restored checkpoint", "baseline", state.Baseline.String(), "momentum", state.Momentum.String())
	return true
}

// Run saves on every interval when the state changed, and once more on shutdown.
func (c *Checkpointer) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCheckpointTimeout)
			c.Save(saveCtx)
			cancel()
			return
		case <-ticker.Chan():
			c.Save(ctx)
		}
	}
}

// Save writes the current state if it differs from the last saved one.
func (c *Checkpointer) Save(ctx context.Context) {
	state := c.pipeline.State()
	if state.Baseline == c.last.Baseline && state.Momentum == c.last.Momentum && state.LastUpdate.Equal(c.last.LastUpdate) {
		return
	}
	if err := c.store.SaveState(ctx, state); err != nil {
		slog.WarnContext(ctx, "Checkpoint failed", "error", err)
		return
	}
	c.last = state
	slog.DebugContext(ctx, "Checkpoint saved", "momentum_magnitude", state.MomentumMagnitude)
}
