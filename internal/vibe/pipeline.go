package vibe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const maxParallelExtractions = 4

// Outcome labels for processed transcripts.
const (
	OutcomeApplied     = "applied"
	OutcomeEmptySignal = "empty_signal"
)

// Config holds the amplification and output knobs of the pipeline.
type Config struct {
	DefaultInfluence float64
	Passion          float64
	PassionCurve     float64
	PassionDims      Mask
	Drama            float64
	Neighbors        int
	MinConfidence    float64
	Precision        int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		DefaultInfluence: DefaultInfluence,
		Passion:          0.65,
		PassionCurve:     1.5,
		PassionDims:      MaskVAD,
		Drama:            0.65,
		Neighbors:        1,
		MinConfidence:    0.05,
		Precision:        DefaultPrecision,
	}
}

// Observer receives pipeline telemetry. Implementations must not block.
type Observer interface {
	ParameterClamped(param string)
	TranscriptProcessed(outcome string, sentences int, duration time.Duration)
	FrameEmitted(frame domain.Frame, err error)
}

type nopObserver struct{}

func (nopObserver) ParameterClamped(string)                        {}
func (nopObserver) TranscriptProcessed(string, int, time.Duration) {}
func (nopObserver) FrameEmitted(domain.Frame, error)               {}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, domain.Frame) error { return nil }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver attaches telemetry.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithEmitter sets where frames go. Without it frames are only kept for Status.
// Emit is called while frame order is held, so slow sinks belong behind a queue.
func WithEmitter(e domain.FrameEmitter) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.emitter = e
		}
	}
}

// Request is one transcript event. Nil parameters fall back to the configured defaults.
type Request struct {
	Text      string
	Influence *float64
	Passion   *float64
	Drama     *float64
}

// Trace records the vector after each stage.
type Trace struct {
	Natural   domain.Vector `json:"natural"`
	Blended   domain.Vector `json:"blended"`
	Amplified domain.Vector `json:"amplified"`
	Final     domain.Vector `json:"final"`
	Anchor    domain.Match  `json:"anchor"`
}

// SentenceTrace describes how one sentence was handled.
type SentenceTrace struct {
	Text       string        `json:"text"`
	Reading    domain.Vector `json:"reading"`
	Confidence float64       `json:"confidence"`
	Blended    domain.Vector `json:"blended"`
	Skipped    bool          `json:"skipped"`
}

// Result is the outcome of Process.
type Result struct {
	Frame         domain.Frame    `json:"frame"`
	Trace         Trace           `json:"trace"`
	Sentences     []SentenceTrace `json:"sentences"`
	InfluenceUsed float64         `json:"influence_used"`
	PassionUsed   float64         `json:"passion_used"`
	DramaUsed     float64         `json:"drama_used"`
	EmptySignal   bool            `json:"empty_signal"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// Pipeline runs blend -> passion gain -> cinematic pull -> render -> emit.
type Pipeline struct {
	cfg       Config
	blender   *Blender
	matcher   *Matcher
	extractor domain.Extractor
	emitter   domain.FrameEmitter
	observer  Observer
	clock     clockwork.Clock

	// frameMu orders state updates with the frames that show them. passion and
	// drama are the values of the latest transcript; periodic frames keep them.
	frameMu sync.Mutex
	seq     uint64
	passion float64
	drama   float64

	mu   sync.RWMutex
	last *domain.Frame
}

func NewPipeline(cfg Config, blender *Blender, matcher *Matcher, extractor domain.Extractor, clock clockwork.Clock, opts ...Option) (*Pipeline, error) {
	if blender == nil || matcher == nil || extractor == nil {
		return nil, errors.New("pipeline requires a blender, a matcher and an extractor")
	}
	if cfg.Neighbors < 1 {
		cfg.Neighbors = 1
	}
	p := &Pipeline{
		cfg:       cfg,
		blender:   blender,
		matcher:   matcher,
		extractor: extractor,
		emitter:   nopEmitter{},
		observer:  nopObserver{},
		clock:     clock,
		passion:   cfg.Passion,
		drama:     cfg.Drama,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// --- Transcript processing ---

type extraction struct {
	reading domain.Reading
	err     error
}

// Process handles one transcript. Text without usable signal is not an error: momentum
// decays and the current state is re-emitted. The only error is a cancelled context.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	start := p.clock.Now()
	var res Result
	res.InfluenceUsed = p.param(&res, "influence", req.Influence, p.cfg.DefaultInfluence)
	res.PassionUsed = p.param(&res, "passion", req.Passion, p.cfg.Passion)
	res.DramaUsed = p.param(&res, "drama", req.Drama, p.cfg.Drama)

	sentences := SplitSentences(req.Text)
	extracted, err := p.extractAll(ctx, sentences)
	if err != nil {
		return Result{}, err
	}

	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	p.passion, p.drama = res.PassionUsed, res.DramaUsed

	// Lazy decay for the time since the last tick, then one burst per sentence.
	res.Trace.Blended = p.blender.DecayToNow()
	var natural domain.Vector
	var usable int
	for i, s := range sentences {
		st := SentenceTrace{Text: s, Reading: extracted[i].reading.Vector, Confidence: extracted[i].reading.Confidence}
		if reason := p.unusable(extracted[i]); reason != "" {
			st.Skipped = true
			slog.DebugContext(ctx, "Sentence skipped", "reason", reason, "sentence", i)
			res.Sentences = append(res.Sentences, st)
			continue
		}
		st.Blended = p.blender.ApplyReading(st.Reading, res.InfluenceUsed)
		res.Trace.Blended = st.Blended
		natural = natural.Add(st.Reading)
		usable++
		slog.InfoContext(ctx, "NATURAL", "sentence", i, "reading", st.Reading.String(), "confidence", st.Confidence, "blended", st.Blended.String())
		res.Sentences = append(res.Sentences, st)
	}

	outcome := OutcomeApplied
	if usable == 0 {
		outcome = OutcomeEmptySignal
		res.EmptySignal = true
		res.Trace.Natural = res.Trace.Blended
		slog.InfoContext(ctx, "Empty signal, re-emitting current vibe", "sentences", len(sentences))
	} else {
		res.Trace.Natural = natural.Scale(1 / float64(usable))
	}

	res.Trace.Amplified, res.Trace.Final, res.Trace.Anchor = p.amplify(ctx, res.Trace.Blended, res.PassionUsed, res.DramaUsed)
	res.Frame = p.emit(ctx, res.Trace.Final, &res.Trace.Anchor, domain.CauseTranscript)

	p.observer.TranscriptProcessed(outcome, len(sentences), p.clock.Since(start))
	return res, nil
}

func (p *Pipeline) param(res *Result, name string, requested *float64, def float64) float64 {
	if requested == nil {
		return def
	}
	v, clamped := ClampUnit(*requested, def)
	if clamped {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s %v out of range, using %v", name, *requested, v))
		p.observer.ParameterClamped(name)
		slog.Warn("Parameter out of range, clamped", "param", name, "requested", *requested, "used", v)
	}
	return v
}

// extractAll runs the extractor for every sentence, in parallel when there are several.
// Results keep sentence order.
func (p *Pipeline) extractAll(ctx context.Context, sentences []string) ([]extraction, error) {
	out := make([]extraction, len(sentences))
	if len(sentences) == 1 {
		out[0].reading, out[0].err = p.extractor.Extract(ctx, sentences[0])
		return out, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelExtractions)
	for i, s := range sentences {
		g.Go(func() error {
			out[i].reading, out[i].err = p.extractor.Extract(gctx, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

func (p *Pipeline) unusable(e extraction) string {
	switch {
	case errors.Is(e.err, domain.ErrEmptySignal):
		return "empty"
	case e.err != nil:
		slog.Warn("Extraction failed, treating as empty signal", "error", e.err)
		return "extract_error"
	case !e.reading.Vector.Finite():
		return "malformed"
	case e.reading.Confidence < p.cfg.MinConfidence:
		return "low_confidence"
	}
	return ""
}

// --- Periodic and administrative frames ---

// Tick decays momentum to the current time and emits the resulting frame. It
// amplifies with the passion and drama of the latest transcript.
func (p *Pipeline) Tick(ctx context.Context) domain.Frame {
	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	v := p.blender.DecayToNow()
	_, final, match := p.amplifyQuiet(v, p.passion, p.drama)
	return p.emit(ctx, final, &match, domain.CauseTick)
}

// Reset overwrites momentum with zero (a full-influence blend) and emits the result.
func (p *Pipeline) Reset(ctx context.Context) domain.Frame {
	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	v := p.blender.ApplyDelta(domain.Vector{}, 1)
	slog.InfoContext(ctx, "Momentum reset")
	_, final, match := p.amplify(ctx, v, p.passion, p.drama)
	return p.emit(ctx, final, &match, domain.CauseReset)
}

// UpdateBaseline nudges the baseline toward a climate estimate and emits the result.
func (p *Pipeline) UpdateBaseline(ctx context.Context, target domain.Vector, influence float64) domain.Frame {
	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	v := p.blender.ApplyBaseline(target, influence)
	slog.InfoContext(ctx, "BASELINE", "target", target.String(), "influence", influence, "baseline", p.blender.Snapshot().Baseline.String())
	_, final, match := p.amplify(ctx, v, p.passion, p.drama)
	return p.emit(ctx, final, &match, domain.CauseBaseline)
}

// Restore seeds the blender from a checkpoint.
func (p *Pipeline) Restore(state domain.BlenderState) error {
	return p.blender.Restore(state)
}

// Settled reports whether the display has relaxed to within tolerance of the baseline.
func (p *Pipeline) Settled(tolerance float64) bool {
	return p.blender.SettledWithin(tolerance)
}

// --- Amplification and emission ---

func (p *Pipeline) amplify(ctx context.Context, v domain.Vector, passion, drama float64) (domain.Vector, domain.Vector, domain.Match) {
	amplified, final, match := p.amplifyQuiet(v, passion, drama)
	slog.DebugContext(ctx, "PASSION", "passion", passion, "vector", amplified.String())
	slog.InfoContext(ctx, "DRAMA",
		"drama", drama,
		"anchor", match.Anchor.Name,
		"source", match.Anchor.Source,
		"distance", match.Distance,
		"vector", final.String(),
	)
	return amplified, final, match
}

func (p *Pipeline) amplifyQuiet(v domain.Vector, passion, drama float64) (domain.Vector, domain.Vector, domain.Match) {
	amplified := PassionGain(v, passion, p.cfg.PassionCurve, p.cfg.PassionDims)
	final, match := CinematicPull(amplified, drama, p.matcher, p.cfg.Neighbors)
	return amplified, final.Clamp(0, 1), match
}

// emit must be called with frameMu held.
func (p *Pipeline) emit(ctx context.Context, v domain.Vector, match *domain.Match, cause domain.FrameCause) domain.Frame {
	p.seq++
	frame := domain.Frame{
		Seq:       p.seq,
		Vibe:      v,
		Line:      Render(v, p.cfg.Precision),
		Anchor:    match,
		Cause:     cause,
		EmittedAt: p.clock.Now(),
	}

	p.mu.Lock()
	p.last = &frame
	p.mu.Unlock()

	err := p.emitter.Emit(ctx, frame)
	if err != nil {
		slog.WarnContext(ctx, "Frame emission failed", "cause", cause, "error", err)
	}
	p.observer.FrameEmitted(frame, err)
	return frame
}

// --- Status ---

// Status returns a point-in-time view of the state and the last emitted frame.
func (p *Pipeline) Status() domain.Snapshot {
	state := p.blender.Snapshot()
	snap := domain.Snapshot{
		LastVibe:          state.Displayed,
		Baseline:          state.Baseline,
		Momentum:          state.Momentum,
		MomentumMagnitude: state.MomentumMagnitude,
		Displayed:         state.Displayed,
		LastUpdate:        state.LastUpdate,
	}

	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()
	if last != nil {
		snap.LastVibe = last.Vibe
		snap.NearestAnchor = last.Anchor
	}
	return snap
}

// State returns the raw blender state for checkpointing.
func (p *Pipeline) State() domain.BlenderState {
	return p.blender.Snapshot()
}

// Matcher exposes the anchor matcher for lookup endpoints.
func (p *Pipeline) Matcher() *Matcher {
	return p.matcher
}
