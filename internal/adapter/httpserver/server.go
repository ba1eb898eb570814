package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/anchors"
	"github.com/brainwavecollective/vibe-eyes/internal/app"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/config"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/labstack/echo/v4"
)

type appService interface {
	SubmitTranscript(ctx context.Context, req vibe.Request) (*app.TranscriptResult, error)
	Status() app.Status
	Reset(ctx context.Context) domain.Frame
	Anchors() ([]domain.Anchor, anchors.Stats)
	Nearest(v domain.Vector, k int) []domain.Match
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// ErrorRecorder counts structured error responses by type.
type ErrorRecorder interface {
	RecordError(errType string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app appService

	websocketHandler http.Handler
	metricsHandler   http.Handler
	metrics          echo.MiddlewareFunc
	errors           ErrorRecorder

	healthChecks []HealthCheck
	startTime    time.Time
}

// Option customizes optional server collaborators.
type Option func(*Server)

// WithWebsocket mounts the frame stream on /ws.
func WithWebsocket(h http.Handler) Option {
	return func(s *Server) { s.websocketHandler = h }
}

// WithMetrics serves h on /metrics and wraps requests with mw. Either may be nil.
func WithMetrics(h http.Handler, mw echo.MiddlewareFunc, errs ErrorRecorder) Option {
	return func(s *Server) {
		s.metricsHandler = h
		s.metrics = mw
		s.errors = errs
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func NewServer(cfg *config.Config, app appService, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	e.HTTPErrorHandler = srv.handleHTTPError
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
