package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	defaultClimateCheckInterval = 500 * time.Millisecond
	defaultSettleTolerance      = 0.02
	climateWarmupText           = "Hello."
)

type baselineTarget interface {
	UpdateBaseline(ctx context.Context, target domain.Vector, influence float64) domain.Frame
	Settled(tolerance float64) bool
}

// ClimateRecorder receives climate request telemetry.
type ClimateRecorder interface {
	ClimateRequest(result string, duration time.Duration)
}

// ClimateConfig tunes the slow baseline updater.
type ClimateConfig struct {
	Influence     float64
	Timeout       time.Duration
	CheckInterval time.Duration
	Tolerance     float64
	Words         int
}

// ClimateStatus is reported on /status.
type ClimateStatus struct {
	Enabled    bool      `json:"enabled"`
	Pending    bool      `json:"slow_pending"`
	InFlight   bool      `json:"slow_in_flight"`
	LastUpdate time.Time `json:"last_update,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// ClimateUpdater re-estimates the baseline from recent words. A request is made only
// after new transcripts arrived and the display has settled near the current baseline,
// so the slow estimate never fights an active burst.
type ClimateUpdater struct {
	source   domain.ClimateSource
	target   baselineTarget
	words    *WordBuffer
	clock    clockwork.Clock
	cfg      ClimateConfig
	recorder ClimateRecorder

	group    singleflight.Group
	pending  atomic.Bool
	inFlight atomic.Bool

	mu         sync.Mutex
	lastUpdate time.Time
	lastErr    error
}

func NewClimateUpdater(source domain.ClimateSource, target baselineTarget, words *WordBuffer, clock clockwork.Clock, cfg ClimateConfig, recorder ClimateRecorder) *ClimateUpdater {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultClimateCheckInterval
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultSettleTolerance
	}
	if cfg.Words <= 0 {
		cfg.Words = defaultClimateWords
	}
	return &ClimateUpdater{
		source:   source,
		target:   target,
		words:    words,
		clock:    clock,
		cfg:      cfg,
		recorder: recorder,
	}
}

// MarkPending records that new text arrived since the last estimate.
func (c *ClimateUpdater) MarkPending() {
	c.pending.Store(true)
}

// Warmup sends a short greeting so the first real estimate does not pay for model
// loading. Its estimate seeds the baseline like any other.
func (c *ClimateUpdater) Warmup(ctx context.Context) {
	start := c.clock.Now()
	wctx, cancel := c.withTimeout(ctx)
	defer cancel()

	target, err := c.source.Climate(wctx, climateWarmupText)
	if err != nil {
		slog.WarnContext(ctx, "Climate warm-up failed", "error", err)
		c.record("warmup_error", start)
		c.setResult(err)
		return
	}
	c.record("warmup", start)
	c.setResult(nil)
	slog.InfoContext(ctx, "Climate model warmed up", "duration", c.clock.Since(start))
	c.target.UpdateBaseline(ctx, target, c.cfg.Influence)
}

// Run checks for due updates until ctx is cancelled.
func (c *ClimateUpdater) Run(ctx context.Context) {
	c.Warmup(ctx)

	ticker := c.clock.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if c.due() {
				c.Refresh(correlation.WithID(ctx, correlation.NewID()))
			}
		}
	}
}

func (c *ClimateUpdater) due() bool {
	return c.pending.Load() && !c.inFlight.Load() && c.words.Len() > 0 && c.target.Settled(c.cfg.Tolerance)
}

// Refresh estimates the climate of the recent words and applies it to the baseline.
// Concurrent calls share one request.
func (c *ClimateUpdater) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("climate", func() (any, error) {
		c.inFlight.Store(true)
		defer c.inFlight.Store(false)
		c.pending.Store(false)

		text := c.words.Last(c.cfg.Words)
		if text == "" {
			return nil, domain.ErrClimateUnavailable
		}

		start := c.clock.Now()
		rctx, cancel := c.withTimeout(ctx)
		defer cancel()

		target, err := c.source.Climate(rctx, text)
		if err != nil {
			c.record("error", start)
			c.setResult(err)
			slog.WarnContext(ctx, "Climate estimate failed", "error", err)
			return nil, err
		}
		c.record("ok", start)
		c.setResult(nil)
		c.target.UpdateBaseline(ctx, target, c.cfg.Influence)
		return nil, nil
	})
	if errors.Is(err, domain.ErrClimateUnavailable) {
		return nil
	}
	return err
}

func (c *ClimateUpdater) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *ClimateUpdater) setResult(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err == nil {
		c.lastUpdate = c.clock.Now()
	}
}

func (c *ClimateUpdater) record(result string, start time.Time) {
	if c.recorder != nil {
		c.recorder.ClimateRequest(result, c.clock.Since(start))
	}
}

// Status reports the updater flags.
func (c *ClimateUpdater) Status() ClimateStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := ClimateStatus{
		Enabled:    true,
		Pending:    c.pending.Load(),
		InFlight:   c.inFlight.Load(),
		LastUpdate: c.lastUpdate,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
