// Package serial writes rendered VIBE lines to the display device over a serial port.
// Without a usable port it runs in dry-run mode and only logs the lines.
package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/adapter/metrics"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"go.bug.st/serial"
)

const (
	defaultBaud         = 115200
	defaultBreakerDelay = 5 * time.Second
	defaultWriteTimeout = 500 * time.Millisecond
	breakerFailures     = 3
)

// OpenFunc opens a named port for writing.
type OpenFunc func(name string, baud int) (io.WriteCloser, error)

// OpenPort opens a real serial port with 8N1 framing.
func OpenPort(name string, baud int) (io.WriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

type Config struct {
	Port         string
	Baud         int
	BreakerDelay time.Duration
	// WriteTimeout bounds a single line write. A write that overruns it
	// counts as a failure and drops the port.
	WriteTimeout time.Duration
	Open         OpenFunc
}

// Writer implements domain.FrameEmitter for the serial device. A failed write closes the
// port; the next write the circuit breaker permits reopens it, so a replugged device
// recovers without a restart.
type Writer struct {
	cfg     Config
	cb      circuitbreaker.CircuitBreaker[any]
	metrics *metrics.SerialMetrics

	mu     sync.Mutex
	port   io.WriteCloser
	dryRun bool
}

// Open connects to cfg.Port. An empty port name, or a port that cannot be opened,
// selects dry-run mode rather than failing startup.
func Open(cfg Config, m *metrics.SerialMetrics) *Writer {
	if cfg.Baud <= 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = defaultBreakerDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Open == nil {
		cfg.Open = OpenPort
	}

	w := &Writer{cfg: cfg, metrics: m}
	w.cb = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailures).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "serial",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if w.metrics != nil {
				w.metrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	if cfg.Port == "" {
		slog.Info("Dry-run mode: no serial port configured")
		w.dryRun = true
		return w
	}

	port, err := cfg.Open(cfg.Port, cfg.Baud)
	if err != nil {
		slog.Warn("Failed to open serial port, using dry-run mode", "port", cfg.Port, "error", err)
		w.dryRun = true
		return w
	}
	slog.Info("Connected to display device", "port", cfg.Port, "baud", cfg.Baud)
	w.port = port
	return w
}

func (w *Writer) DryRun() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dryRun
}

// Emit writes one frame line. In dry-run mode the line is only logged.
// Lines that do not parse as a VIBE line never reach the device.
func (w *Writer) Emit(ctx context.Context, frame domain.Frame) error {
	if _, err := vibe.ParseLine(frame.Line); err != nil {
		return fmt.Errorf("refusing to write: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dryRun {
		slog.DebugContext(ctx, "DRY-RUN", "line", strings.TrimSpace(frame.Line))
		return nil
	}

	if !w.cb.TryAcquirePermit() {
		if w.metrics != nil {
			w.metrics.Rejected.Inc()
		}
		return fmt.Errorf("serial write rejected: %w", circuitbreaker.ErrOpen)
	}

	if err := w.writeLocked(ctx, frame.Line); err != nil {
		w.cb.RecordError(err)
		if w.metrics != nil {
			w.metrics.WriteErrors.Inc()
		}
		return fmt.Errorf("failed to write serial line: %w", err)
	}

	w.cb.RecordSuccess()
	if w.metrics != nil {
		w.metrics.LinesWritten.Inc()
	}
	return nil
}

func (w *Writer) writeLocked(ctx context.Context, line string) error {
	if w.port == nil {
		port, err := w.cfg.Open(w.cfg.Port, w.cfg.Baud)
		if err != nil {
			return fmt.Errorf("failed to reopen %s: %w", w.cfg.Port, err)
		}
		slog.Info("Reconnected to display device", "port", w.cfg.Port)
		w.port = port
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
	defer cancel()

	port := w.port
	done := make(chan error, 1)
	go func() {
		_, err := io.WriteString(port, line)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = port.Close()
			w.port = nil
			return err
		}
		return nil
	case <-ctx.Done():
		// Closing unblocks the stuck write; a wedged driver may also block
		// Close, so it must not hold the writer.
		go func() { _ = port.Close() }()
		w.port = nil
		return fmt.Errorf("serial write did not complete: %w", ctx.Err())
	}
}

// Health reports an open breaker. Dry-run is healthy.
func (w *Writer) Health(_ context.Context) error {
	if w.cb.IsOpen() {
		return fmt.Errorf("serial output unavailable: %w", circuitbreaker.ErrOpen)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.port == nil {
		return nil
	}
	err := w.port.Close()
	w.port = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
