package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/adapter/httpserver"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/lexicon"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/llm"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/metrics"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/redis"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/serial"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/sqlite"
	"github.com/brainwavecollective/vibe-eyes/internal/adapter/websocket"
	"github.com/brainwavecollective/vibe-eyes/internal/anchors"
	"github.com/brainwavecollective/vibe-eyes/internal/app"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/config"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/logging"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/version"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupEngine(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer, emitter domain.FrameEmitter) *vibe.Pipeline {
	palette, err := anchors.Load(cfg.AnchorsFile)
	if anchors.IsConfigError(err) {
		slog.Error("Anchor dataset is invalid", "file", cfg.AnchorsFile, "error", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to load anchor dataset", "file", cfg.AnchorsFile, "error", err)
		os.Exit(1)
	}
	if stats, err := anchors.Summarize(palette); err == nil {
		slog.Info("Anchor dataset loaded", "anchors", stats.Count)
	}

	vecs, err := cfg.ParseVectors()
	if err != nil {
		slog.Error("Invalid vector settings", "error", err)
		os.Exit(1)
	}
	dims, err := vibe.ParseMask(cfg.PassionDims)
	if err != nil {
		slog.Error("Invalid VIBE_PASSION_DIMS", "error", err)
		os.Exit(1)
	}

	matcher, err := vibe.NewMatcher(palette, vecs.AnchorWeights)
	if err != nil {
		slog.Error("Failed to build anchor matcher", "error", err)
		os.Exit(1)
	}

	lex, err := lexicon.Load(cfg.LexiconFile)
	if err != nil {
		slog.Error("Failed to load lexicon", "file", cfg.LexiconFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Lexicon loaded", "terms", lex.Len())

	blender := vibe.NewBlender(vibe.BlenderConfig{
		Baseline:         vecs.Baseline,
		HalfLife:         cfg.HalfLife,
		Hold:             cfg.Hold,
		DefaultInfluence: cfg.Influence,
	}, clock)

	pipeline, err := vibe.NewPipeline(vibe.Config{
		DefaultInfluence: cfg.Influence,
		Passion:          cfg.Passion,
		PassionCurve:     cfg.PassionCurve,
		PassionDims:      dims,
		Drama:            cfg.Drama,
		Neighbors:        cfg.Neighbors,
		MinConfidence:    cfg.MinConfidence,
		Precision:        cfg.Precision,
	}, blender, matcher, lexicon.NewExtractor(lex), clock,
		vibe.WithEmitter(emitter),
		vibe.WithObserver(metrics.NewPipelineMetrics(reg)),
	)
	if err != nil {
		slog.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	return pipeline
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupHistory(ctx context.Context, cfg *config.Config) *sqlite.HistoryRepository {
	repo, err := sqlite.Open(ctx, cfg.HistoryDB)
	if err != nil {
		slog.Error("Failed to open history database", "path", cfg.HistoryDB, "error", err)
		os.Exit(1)
	}
	slog.Info("Transcript history enabled", "path", cfg.HistoryDB)
	return repo
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	var checks []httpserver.HealthCheck

	// Outputs: the serial device gets every frame; the streams only see changes.
	serialWriter := serial.Open(serial.Config{Port: cfg.SerialPort, Baud: cfg.SerialBaud}, metrics.NewSerialMetrics(reg))
	defer func() { _ = serialWriter.Close() }()
	checks = append(checks, httpserver.HealthCheck{Name: "serial", Check: serialWriter.Health})

	hub := websocket.NewHub(
		websocket.WithMaxClients(cfg.WSMaxClients),
		websocket.WithMetrics(metrics.NewWebSocketMetrics(reg)),
	)
	defer hub.Stop()

	// Each sink drains its own queue so a stalled one never holds up the engine.
	outputMetrics := metrics.NewOutputMetrics(reg)
	serialOut := app.NewOutbox("serial", serialWriter, app.WithOutboxRecorder(outputMetrics))
	defer serialOut.Close()
	wsOut := app.NewOutbox("websocket", app.NewChangesOnly(hub), app.WithOutboxRecorder(outputMetrics))
	defer wsOut.Close()

	outputs := app.NewFanOut().
		Add("serial", serialOut).
		Add("websocket", wsOut)

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(ctx, cfg, reg)
		defer func() { _ = redisClient.Close() }()
		redisOut := app.NewOutbox("redis", app.NewChangesOnly(redis.NewFramePublisher(redisClient, cfg.RedisChannel)), app.WithOutboxRecorder(outputMetrics))
		defer redisOut.Close()
		outputs.Add("redis", redisOut)
		checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: redis.HealthCheck(redisClient)})
	}

	pipeline := setupEngine(cfg, clock, reg, outputs)

	// Pass nil explicitly to avoid a typed-nil interface.
	var history domain.HistoryRepository
	if cfg.HistoryDB != "" {
		repo := setupHistory(ctx, cfg)
		defer func() { _ = repo.Close() }()
		history = repo
		checks = append(checks, httpserver.HealthCheck{Name: "history", Check: repo.Health})
	}

	words := app.NewWordBuffer(0)

	var climate *app.ClimateUpdater
	if cfg.ClimateURL != "" {
		source := llm.NewClimateSource(llm.Config{
			BaseURL: cfg.ClimateURL,
			Model:   cfg.ClimateModel,
			APIKey:  cfg.ClimateAPIKey,
			Clock:   clock,
		})
		climate = app.NewClimateUpdater(source, pipeline, words, clock, app.ClimateConfig{
			Influence: cfg.ClimateInfluence,
			Timeout:   cfg.ClimateTimeout,
		}, metrics.NewClimateMetrics(reg))
	}

	appSvc := app.NewService(pipeline, words, history, climate, clock)

	var checkpointer *app.Checkpointer
	if redisClient != nil {
		checkpointer = app.NewCheckpointer(redis.NewStateStore(redisClient, cfg.RedisStateKey), pipeline, clock, cfg.CheckpointInterval)
		checkpointer.Restore(ctx)
	}

	httpMetrics := metrics.NewHTTPMetrics(reg)
	srv := httpserver.NewServer(cfg, appSvc,
		httpserver.WithWebsocket(websocket.NewHandler(hub, websocket.NewCheckOrigin(cfg.AllowedOrigins(), cfg.AppEnv == "development"))),
		httpserver.WithMetrics(metrics.Handler(reg), httpMetrics.Middleware(), httpMetrics),
		httpserver.WithHealthChecks(checks...),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.NewDecayTicker(pipeline, clock, cfg.TickInterval).Run(gctx)
		return nil
	})
	if climate != nil {
		g.Go(func() error {
			climate.Run(gctx)
			return nil
		})
	}
	if checkpointer != nil {
		g.Go(func() error {
			checkpointer.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
