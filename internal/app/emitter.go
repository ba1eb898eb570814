package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

// namedEmitter labels a sink so fan-out errors say which one failed.
type namedEmitter struct {
	name    string
	emitter domain.FrameEmitter
}

// FanOut delivers each frame to every registered sink in order.
type FanOut struct {
	sinks []namedEmitter
}

func NewFanOut() *FanOut {
	return &FanOut{}
}

// Add registers a sink. Nil sinks are ignored.
func (f *FanOut) Add(name string, e domain.FrameEmitter) *FanOut {
	if e != nil {
		f.sinks = append(f.sinks, namedEmitter{name: name, emitter: e})
	}
	return f
}

func (f *FanOut) Len() int { return len(f.sinks) }

// Emit tries every sink and joins their errors.
func (f *FanOut) Emit(ctx context.Context, frame domain.Frame) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.emitter.Emit(ctx, frame); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// ChangesOnly forwards every non-tick frame, and tick frames only when their
// rendered line differs from the last forwarded one. Streaming sinks use it so an
// idle display does not flood subscribers at the tick rate.
type ChangesOnly struct {
	next domain.FrameEmitter

	mu       sync.Mutex
	lastLine string
}

func NewChangesOnly(next domain.FrameEmitter) *ChangesOnly {
	return &ChangesOnly{next: next}
}

func (c *ChangesOnly) Emit(ctx context.Context, frame domain.Frame) error {
	c.mu.Lock()
	if frame.Cause == domain.CauseTick && frame.Line == c.lastLine {
		c.mu.Unlock()
		return nil
	}
	c.lastLine = frame.Line
	c.mu.Unlock()
	return c.next.Emit(ctx, frame)
}
