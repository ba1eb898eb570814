package vibe

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultInfluence is the blend rate used when a caller supplies none.
const DefaultInfluence = 0.15

// BlenderConfig holds the momentum knobs.
type BlenderConfig struct {
	Baseline         domain.Vector
	HalfLife         time.Duration // <= 0 disables decay
	Hold             time.Duration // plateau after each update before decay starts
	DefaultInfluence float64
}

// DefaultBlenderConfig returns a neutral baseline with a 3s half-life and 2s hold.
func DefaultBlenderConfig() BlenderConfig {
	return BlenderConfig{
		Baseline:         domain.Neutral,
		HalfLife:         3 * time.Second,
		Hold:             2 * time.Second,
		DefaultInfluence: DefaultInfluence,
	}
}

// Blender owns the momentum state: a slowly moving baseline plus a decaying momentum
// deviation. The displayed vector is always clamp(baseline + momentum, 0, 1).
// All operations share one mutex and do arithmetic only while holding it.
type Blender struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	cfg        BlenderConfig
	baseline   domain.Vector
	momentum   domain.Vector
	lastUpdate time.Time
	lastDecay  time.Time
}

func NewBlender(cfg BlenderConfig, clock clockwork.Clock) *Blender {
	if !cfg.Baseline.InUnitCube() {
		cfg.Baseline = cfg.Baseline.Clamp(0, 1)
	}
	if math.IsNaN(cfg.DefaultInfluence) || cfg.DefaultInfluence < 0 || cfg.DefaultInfluence > 1 {
		cfg.DefaultInfluence = DefaultInfluence
	}
	now := clock.Now()
	return &Blender{
		clock:      clock,
		cfg:        cfg,
		baseline:   cfg.Baseline,
		lastUpdate: now,
		lastDecay:  now,
	}
}

// ApplyDelta blends delta into momentum: momentum*(1-influence) + delta*influence.
// Influence 0 leaves momentum untouched; influence 1 replaces it with delta.
// Out-of-range influence is clamped and logged.
func (b *Blender) ApplyDelta(delta domain.Vector, influence float64) domain.Vector {
	influence = b.sanitizeInfluence(influence)
	delta = sanitizeDelta(delta)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blendLocked(delta, influence)
	return b.displayedLocked()
}

// ApplyReading blends an absolute reading, taken as its deviation from the current
// baseline. The subtraction happens under the same lock as the blend so a concurrent
// baseline update cannot interleave. Non-finite components count as no deviation.
func (b *Blender) ApplyReading(reading domain.Vector, influence float64) domain.Vector {
	influence = b.sanitizeInfluence(influence)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blendLocked(sanitizeDelta(reading.Sub(b.baseline)), influence)
	return b.displayedLocked()
}

func (b *Blender) blendLocked(delta domain.Vector, influence float64) {
	switch influence {
	case 0:
		// exact hold
	case 1:
		b.momentum = delta
	default:
		b.momentum = b.momentum.Mix(delta, influence)
	}
	now := b.clock.Now()
	b.lastUpdate = now
	b.lastDecay = now
}

// Decay scales momentum by 0.5^(elapsed/halfLife). Non-positive elapsed is a no-op.
func (b *Blender) Decay(elapsed time.Duration) domain.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decayLocked(elapsed)
	return b.displayedLocked()
}

// DecayToNow decays by the wall time since the later of the previous decay and the
// end of the hold window that follows the last update.
func (b *Blender) DecayToNow() domain.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	from := b.lastUpdate.Add(b.cfg.Hold)
	if b.lastDecay.After(from) {
		from = b.lastDecay
	}
	if elapsed := now.Sub(from); elapsed > 0 {
		b.decayLocked(elapsed)
		b.lastDecay = now
	}
	return b.displayedLocked()
}

func (b *Blender) decayLocked(elapsed time.Duration) {
	if elapsed <= 0 || b.cfg.HalfLife <= 0 {
		return
	}
	factor := math.Exp2(-elapsed.Seconds() / b.cfg.HalfLife.Seconds())
	b.momentum = b.momentum.Scale(factor)
}

// ApplyBaseline moves the baseline toward target by influence. Momentum is kept, so
// the displayed vector shifts by the same amount as the baseline.
func (b *Blender) ApplyBaseline(target domain.Vector, influence float64) domain.Vector {
	influence = b.sanitizeInfluence(influence)
	if !target.Finite() {
		slog.Warn("Ignoring non-finite baseline target", "target", target.String())
		return b.Displayed()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseline = b.baseline.Mix(target.Clamp(0, 1), influence).Clamp(0, 1)
	return b.displayedLocked()
}

// Displayed returns clamp(baseline + momentum, 0, 1).
func (b *Blender) Displayed() domain.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayedLocked()
}

func (b *Blender) displayedLocked() domain.Vector {
	return b.baseline.Add(b.momentum).Clamp(0, 1)
}

// Snapshot returns a consistent copy of the state.
func (b *Blender) Snapshot() domain.BlenderState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.BlenderState{
		Baseline:          b.baseline,
		Momentum:          b.momentum,
		MomentumMagnitude: b.momentum.Norm(),
		Displayed:         b.displayedLocked(),
		LastUpdate:        b.lastUpdate,
	}
}

// Restore replaces baseline and momentum with a checkpoint. Decay restarts from now.
func (b *Blender) Restore(state domain.BlenderState) error {
	if !state.Baseline.InUnitCube() {
		return fmt.Errorf("checkpoint baseline %s outside [0,1]", state.Baseline)
	}
	if !state.Momentum.Finite() {
		return fmt.Errorf("checkpoint momentum %s is not finite", state.Momentum)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseline = state.Baseline
	b.momentum = state.Momentum
	b.lastUpdate = state.LastUpdate
	b.lastDecay = b.clock.Now()
	return nil
}

// SettledWithin reports whether every displayed component is within tolerance of the baseline.
func (b *Blender) SettledWithin(tolerance float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayedLocked().Sub(b.baseline).MaxAbs() < tolerance
}

func (b *Blender) sanitizeInfluence(influence float64) float64 {
	v, clamped := ClampUnit(influence, b.cfg.DefaultInfluence)
	if clamped {
		slog.Warn("Influence out of range, clamped", "requested", influence, "used", v)
	}
	return v
}

// ClampUnit bounds x into [0,1]. NaN becomes def. The flag reports whether x changed.
func ClampUnit(x, def float64) (float64, bool) {
	if math.IsNaN(x) {
		return def, true
	}
	if x < 0 {
		return 0, true
	}
	if x > 1 {
		return 1, true
	}
	return x, false
}

func sanitizeDelta(v domain.Vector) domain.Vector {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}
	return v
}
