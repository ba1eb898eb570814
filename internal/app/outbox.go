package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
)

const (
	defaultOutboxBuffer    = 16
	defaultDeliveryTimeout = time.Second
)

// ErrOutboxClosed is returned by Emit after Close.
var ErrOutboxClosed = errors.New("outbox closed")

// OutboxRecorder receives delivery telemetry for one sink.
type OutboxRecorder interface {
	FrameDelivered(sink string, err error)
	FrameDropped(sink string)
}

type nopOutboxRecorder struct{}

func (nopOutboxRecorder) FrameDelivered(string, error) {}
func (nopOutboxRecorder) FrameDropped(string)          {}

type OutboxOption func(*Outbox)

// WithOutboxBuffer sets how many frames may wait for the sink.
func WithOutboxBuffer(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithDeliveryTimeout bounds each call into the sink.
func WithDeliveryTimeout(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithOutboxRecorder(r OutboxRecorder) OutboxOption {
	return func(o *Outbox) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Outbox puts a bounded queue between the engine and one sink. Emit never waits
// for the sink: a single goroutine delivers queued frames in order, and when the
// queue is full the oldest waiting frame is discarded so the sink catches up on
// the newest state.
type Outbox struct {
	name     string
	next     domain.FrameEmitter
	buffer   int
	timeout  time.Duration
	recorder OutboxRecorder

	mu       sync.Mutex // serializes producers so drop-oldest cannot race
	queue    chan domain.Frame
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewOutbox starts the delivery goroutine. Call Close to stop it.
func NewOutbox(name string, next domain.FrameEmitter, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		name:     name,
		next:     next,
		buffer:   defaultOutboxBuffer,
		timeout:  defaultDeliveryTimeout,
		recorder: nopOutboxRecorder{},
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.queue = make(chan domain.Frame, o.buffer)
	go o.run()
	return o
}

// Emit queues the frame and returns immediately.
func (o *Outbox) Emit(_ context.Context, frame domain.Frame) error {
	select {
	case <-o.done:
		return ErrOutboxClosed
	default:
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for {
		select {
		case o.queue <- frame:
			return nil
		default:
		}
		select {
		case old := <-o.queue:
			slog.Debug("Output queue full, dropping frame", "sink", o.name, "cause", old.Cause)
			o.recorder.FrameDropped(o.name)
		default:
		}
	}
}

// Close stops delivery and waits for the frame in flight, if any. Frames still
// queued are discarded.
func (o *Outbox) Close() {
	o.stopOnce.Do(func() { close(o.done) })
	<-o.stopped
}

func (o *Outbox) run() {
	defer close(o.stopped)
	for {
		select {
		case <-o.done:
			return
		case frame := <-o.queue:
			o.deliver(frame)
		}
	}
}

func (o *Outbox) deliver(frame domain.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	err := o.next.Emit(ctx, frame)
	if err != nil {
		slog.Warn("Frame delivery failed", "sink", o.name, "cause", frame.Cause, "error", err)
	}
	o.recorder.FrameDelivered(o.name, err)
}
