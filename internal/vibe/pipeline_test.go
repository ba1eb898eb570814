package vibe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline  *Pipeline
	extractor *mockExtractor
	emitter   *recordingEmitter
	observer  *recordingObserver
	clock     *clockwork.FakeClock
}

// newTestPipeline builds a pipeline with amplification off unless cfg overrides it.
func newTestPipeline(t *testing.T, mutate func(*Config)) *pipelineFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	cfg := DefaultConfig()
	cfg.Passion = 0
	cfg.Drama = 0
	if mutate != nil {
		mutate(&cfg)
	}

	matcher, err := NewMatcher(testAnchors(), domain.Vector{})
	require.NoError(t, err)

	f := &pipelineFixture{
		extractor: &mockExtractor{},
		emitter:   &recordingEmitter{},
		observer:  &recordingObserver{},
		clock:     clock,
	}
	f.pipeline, err = NewPipeline(cfg, NewBlender(DefaultBlenderConfig(), clock), matcher, f.extractor, clock,
		WithEmitter(f.emitter), WithObserver(f.observer))
	require.NoError(t, err)
	return f
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(DefaultConfig(), nil, nil, nil, clockwork.NewFakeClock())
	assert.Error(t, err)
}

func TestProcess_NeutralBaselineScenario(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.extractor.extractFn = readingsByText(map[string]domain.Vector{
		"What a wonderful day": {0.9, 0.9, 0.9, 0.5, 0.5},
	})

	res, err := f.pipeline.Process(context.Background(), Request{Text: "What a wonderful day", Influence: ptr(0.15)})
	require.NoError(t, err)

	assert.False(t, res.EmptySignal)
	assert.InDeltaSlice(t, []float64{0.06, 0.06, 0.06, 0, 0}, vec(f.pipeline.State().Momentum), 1e-9)
	assert.InDeltaSlice(t, []float64{0.56, 0.56, 0.56, 0.5, 0.5}, vec(res.Frame.Vibe), 1e-9)
	assert.Equal(t, "VIBE 0.56 0.56 0.56 0.5 0.5\n", res.Frame.Line)
	assert.Equal(t, domain.CauseTranscript, res.Frame.Cause)
	assert.Equal(t, domain.Vector{0.9, 0.9, 0.9, 0.5, 0.5}, res.Trace.Natural)

	frames := f.emitter.all()
	require.Len(t, frames, 1)
	assert.Equal(t, res.Frame.Line, frames[0].Line)
	assert.Equal(t, []string{OutcomeApplied}, f.observer.outcomes)
}

func TestProcess_DefaultsApplyWhenParamsAbsent(t *testing.T) {
	f := newTestPipeline(t, nil)

	res, err := f.pipeline.Process(context.Background(), Request{Text: "hello there"})
	require.NoError(t, err)

	assert.Equal(t, DefaultInfluence, res.InfluenceUsed)
	assert.Equal(t, 0.0, res.PassionUsed)
	assert.Equal(t, 0.0, res.DramaUsed)
	assert.Empty(t, res.Warnings)
}

func TestProcess_EmptyTextReemitsCurrentVibe(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.pipeline.blender.ApplyDelta(domain.Vector{0.2, 0, 0, 0, 0}, 1)
	f.clock.Advance(2*time.Second + 3*time.Second) // hold + one half-life

	res, err := f.pipeline.Process(context.Background(), Request{Text: "   "})
	require.NoError(t, err)

	assert.True(t, res.EmptySignal)
	assert.Zero(t, f.extractor.callCount())
	assert.InDelta(t, 0.6, res.Frame.Vibe[domain.Valence], 1e-12)
	assert.Len(t, f.emitter.all(), 1)
	assert.Equal(t, []string{OutcomeEmptySignal}, f.observer.outcomes)
}

func TestProcess_UnusableReadingsAreEmptySignal(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string) (domain.Reading, error)
	}{
		{"no signal", func(context.Context, string) (domain.Reading, error) {
			return domain.Reading{}, domain.ErrEmptySignal
		}},
		{"extractor failure", func(context.Context, string) (domain.Reading, error) {
			return domain.Reading{}, errors.New("lexicon exploded")
		}},
		{"low confidence", func(context.Context, string) (domain.Reading, error) {
			return domain.Reading{Vector: domain.Uniform(0.9), Confidence: 0.01}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestPipeline(t, nil)
			f.extractor.extractFn = tt.fn

			res, err := f.pipeline.Process(context.Background(), Request{Text: "some text"})
			require.NoError(t, err)

			assert.True(t, res.EmptySignal)
			require.Len(t, res.Sentences, 1)
			assert.True(t, res.Sentences[0].Skipped)
			assert.Equal(t, domain.Neutral, res.Frame.Vibe)
			assert.Equal(t, domain.Vector{}, f.pipeline.State().Momentum)
		})
	}
}

func TestProcess_ClampsParametersWithWarnings(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.extractor.extractFn = func(context.Context, string) (domain.Reading, error) {
		return domain.Reading{Vector: domain.Vector{0.8, 0.3, 0.6, 0.5, 0.5}, Confidence: 1}, nil
	}

	res, err := f.pipeline.Process(context.Background(), Request{
		Text:      "anything",
		Influence: ptr(1.4),
		Passion:   ptr(-2),
		Drama:     ptr(0.3),
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.InfluenceUsed)
	assert.Equal(t, 0.0, res.PassionUsed)
	assert.Equal(t, 0.3, res.DramaUsed)
	assert.Len(t, res.Warnings, 2)
	assert.ElementsMatch(t, []string{"influence", "passion"}, f.observer.clamped)
	// full influence: blended vector equals the reading
	assert.InDeltaSlice(t, []float64{0.8, 0.3, 0.6, 0.5, 0.5}, vec(res.Trace.Blended), 1e-12)
	assert.True(t, res.Frame.Vibe.InUnitCube())
}

func TestProcess_SentencesBlendInOrder(t *testing.T) {
	f := newTestPipeline(t, nil)
	var mu sync.Mutex
	var seen []string
	readings := map[string]domain.Vector{
		"First.":  {0.1, 0.1, 0.1, 0.5, 0.5},
		"Second.": {0.3, 0.3, 0.3, 0.5, 0.5},
		"Third.":  {0.9, 0.9, 0.9, 0.5, 0.5},
	}
	f.extractor.extractFn = func(ctx context.Context, text string) (domain.Reading, error) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
		return readingsByText(readings)(ctx, text)
	}

	res, err := f.pipeline.Process(context.Background(), Request{Text: "First. Second. Third.", Influence: ptr(1)})
	require.NoError(t, err)

	require.Len(t, res.Sentences, 3)
	assert.ElementsMatch(t, []string{"First.", "Second.", "Third."}, seen)
	for i, s := range []string{"First.", "Second.", "Third."} {
		assert.Equal(t, s, res.Sentences[i].Text)
		assert.InDeltaSlice(t, vec(readings[s]), vec(res.Sentences[i].Blended), 1e-12)
	}
	// influence 1: the last sentence wins
	assert.InDeltaSlice(t, []float64{0.9, 0.9, 0.9, 0.5, 0.5}, vec(res.Frame.Vibe), 1e-12)
	assert.InDeltaSlice(t, []float64{1.3 / 3, 1.3 / 3, 1.3 / 3, 0.5, 0.5}, vec(res.Trace.Natural), 1e-12)
}

func TestProcess_SkipsOnlyUnusableSentences(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.extractor.extractFn = readingsByText(map[string]domain.Vector{
		"Great news!": {0.9, 0.7, 0.6, 0.5, 0.5},
	})

	res, err := f.pipeline.Process(context.Background(), Request{Text: "Hmm. Great news!", Influence: ptr(1)})
	require.NoError(t, err)

	assert.False(t, res.EmptySignal)
	require.Len(t, res.Sentences, 2)
	assert.True(t, res.Sentences[0].Skipped)
	assert.False(t, res.Sentences[1].Skipped)
}

func TestProcess_ThreeBurstsIncreaseValence(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.extractor.extractFn = func(context.Context, string) (domain.Reading, error) {
		return domain.Reading{Vector: domain.Vector{1, 0.9, 0.8, 0.5, 0.5}, Confidence: 0.9}, nil
	}

	prev := 0.5
	for i := 0; i < 3; i++ {
		res, err := f.pipeline.Process(context.Background(), Request{Text: "I am thrilled"})
		require.NoError(t, err)
		v := res.Frame.Vibe[domain.Valence]
		assert.Greater(t, v, prev)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
}

func TestProcess_AmplificationPipeline(t *testing.T) {
	f := newTestPipeline(t, func(c *Config) {
		c.Passion = 0.65
		c.Drama = 1
	})
	f.extractor.extractFn = func(context.Context, string) (domain.Reading, error) {
		return domain.Reading{Vector: domain.Vector{0.8, 0.75, 0.7, 0.45, 0.8}, Confidence: 1}, nil
	}

	res, err := f.pipeline.Process(context.Background(), Request{Text: "Joyful!", Influence: ptr(1)})
	require.NoError(t, err)

	// Passion pushes away from neutral before the match; full drama snaps to it.
	assert.Greater(t, res.Trace.Amplified[domain.Valence], res.Trace.Blended[domain.Valence])
	assert.Equal(t, "Joy", res.Trace.Anchor.Anchor.Name)
	assert.Equal(t, res.Trace.Anchor.Anchor.Position, res.Frame.Vibe)
	require.NotNil(t, res.Frame.Anchor)
	assert.Equal(t, "Joy", res.Frame.Anchor.Anchor.Name)
}

func TestProcess_EmitterFailureIsNotSurfaced(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.emitter.err = errors.New("serial unplugged")

	res, err := f.pipeline.Process(context.Background(), Request{Text: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Frame.Line)
	assert.Equal(t, 1, f.observer.emitErrs)
}

func TestProcess_CancelledContext(t *testing.T) {
	f := newTestPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Process(ctx, Request{Text: "One. Two."})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.emitter.all())
}

func TestTick_DecaysAndEmits(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.pipeline.blender.ApplyDelta(domain.Vector{0.4, 0, 0, 0, 0}, 1)

	first := f.pipeline.Tick(context.Background())
	assert.InDelta(t, 0.9, first.Vibe[domain.Valence], 1e-12)

	f.clock.Advance(5 * time.Second)
	second := f.pipeline.Tick(context.Background())
	assert.InDelta(t, 0.7, second.Vibe[domain.Valence], 1e-12)
	assert.Equal(t, domain.CauseTick, second.Cause)
	assert.Equal(t, f.clock.Now(), second.EmittedAt)
	assert.Len(t, f.emitter.all(), 2)
}

func TestReset_ZeroesMomentum(t *testing.T) {
	f := newTestPipeline(t, nil)
	f.pipeline.blender.ApplyDelta(domain.Vector{0.3, -0.2, 0.1, 0, 0}, 1)

	frame := f.pipeline.Reset(context.Background())

	assert.Equal(t, domain.Vector{}, f.pipeline.State().Momentum)
	assert.Equal(t, domain.Neutral, frame.Vibe)
	assert.Equal(t, domain.CauseReset, frame.Cause)
}

func TestUpdateBaseline(t *testing.T) {
	f := newTestPipeline(t, nil)

	frame := f.pipeline.UpdateBaseline(context.Background(), domain.Vector{0.7, 0.5, 0.5, 0.5, 0.7}, 0.5)

	assert.InDeltaSlice(t, []float64{0.6, 0.5, 0.5, 0.5, 0.6}, vec(f.pipeline.State().Baseline), 1e-12)
	assert.Equal(t, domain.CauseBaseline, frame.Cause)
	assert.True(t, f.pipeline.Settled(0.02))
}

func TestStatus(t *testing.T) {
	f := newTestPipeline(t, nil)

	initial := f.pipeline.Status()
	assert.Equal(t, domain.Neutral, initial.LastVibe)
	assert.Nil(t, initial.NearestAnchor)

	f.extractor.extractFn = func(context.Context, string) (domain.Reading, error) {
		return domain.Reading{Vector: domain.Vector{0.9, 0.5, 0.5, 0.5, 0.5}, Confidence: 1}, nil
	}
	res, err := f.pipeline.Process(context.Background(), Request{Text: "yay", Influence: ptr(0.5)})
	require.NoError(t, err)

	snap := f.pipeline.Status()
	assert.Equal(t, res.Frame.Vibe, snap.LastVibe)
	assert.InDelta(t, 0.2, snap.Momentum[domain.Valence], 1e-12)
	assert.InDelta(t, 0.2, snap.MomentumMagnitude, 1e-12)
	assert.Equal(t, domain.Neutral, snap.Baseline)
	assert.Equal(t, epoch, snap.LastUpdate)
	require.NotNil(t, snap.NearestAnchor)
}

func TestProcess_ConcurrentRequestsKeepInvariant(t *testing.T) {
	f := newTestPipeline(t, func(c *Config) {
		c.Passion = 0.65
		c.Drama = 0.65
	})
	f.extractor.extractFn = func(_ context.Context, text string) (domain.Reading, error) {
		if len(text)%2 == 0 {
			return domain.Reading{Vector: domain.Vector{0.95, 0.9, 0.8, 0.3, 0.6}, Confidence: 1}, nil
		}
		return domain.Reading{Vector: domain.Vector{0.05, 0.9, 0.1, 0.7, 0.3}, Confidence: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := "a"
			if i%2 == 0 {
				text = "ab"
			}
			res, err := f.pipeline.Process(context.Background(), Request{Text: text, Influence: ptr(0.4)})
			assert.NoError(t, err)
			assert.True(t, res.Frame.Vibe.InUnitCube())
		}()
	}
	wg.Wait()

	assert.True(t, f.pipeline.Status().Displayed.InUnitCube())
	assert.Len(t, f.emitter.all(), 20)
}

func TestTick_KeepsPassionAndDramaOfLatestTranscript(t *testing.T) {
	f := newTestPipeline(t, func(c *Config) {
		c.Passion = 0.65
		c.Drama = 1
	})
	f.extractor.extractFn = func(context.Context, string) (domain.Reading, error) {
		return domain.Reading{Vector: domain.Vector{0.8, 0.75, 0.7, 0.45, 0.8}, Confidence: 1}, nil
	}
	ctx := context.Background()

	res, err := f.pipeline.Process(ctx, Request{Text: "Joyful!", Influence: ptr(1), Passion: ptr(0), Drama: ptr(0)})
	require.NoError(t, err)
	require.Equal(t, "VIBE 0.8 0.75 0.7 0.45 0.8\n", res.Frame.Line)

	// No time has passed, so the tick must show exactly what the transcript showed.
	tick := f.pipeline.Tick(ctx)
	assert.Equal(t, res.Frame.Line, tick.Line)

	reset := f.pipeline.Reset(ctx)
	assert.Equal(t, Render(domain.Neutral, DefaultPrecision), reset.Line)

	// A request without overrides goes back to the configured values.
	res, err = f.pipeline.Process(ctx, Request{Text: "Joyful!", Influence: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.DramaUsed)
	tick = f.pipeline.Tick(ctx)
	assert.Equal(t, res.Frame.Line, tick.Line)
	assert.Equal(t, "Joy", tick.Anchor.Anchor.Name)
}

func TestFrames_OrderedAcrossTicksAndTranscripts(t *testing.T) {
	f := newTestPipeline(t, func(c *Config) {
		c.Passion = 0.65
		c.Drama = 0.65
	})
	f.extractor.extractFn = func(_ context.Context, text string) (domain.Reading, error) {
		if len(text)%2 == 0 {
			return domain.Reading{Vector: domain.Vector{0.95, 0.9, 0.8, 0.3, 0.6}, Confidence: 1}, nil
		}
		return domain.Reading{Vector: domain.Vector{0.05, 0.9, 0.1, 0.7, 0.3}, Confidence: 1}, nil
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			text := "a"
			if i%2 == 0 {
				text = "ab"
			}
			_, err := f.pipeline.Process(ctx, Request{Text: text, Influence: ptr(0.4)})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			f.pipeline.Tick(ctx)
		}()
	}
	wg.Wait()

	frames := f.emitter.all()
	require.Len(t, frames, 40)
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].Seq+1, frames[i].Seq, "frame %d", i)
	}

	// The last frame out shows the current state, never an older one.
	last := frames[len(frames)-1]
	assert.Equal(t, last.Vibe, f.pipeline.Status().LastVibe)
	assert.Equal(t, last.Line, f.pipeline.Tick(ctx).Line)
}
