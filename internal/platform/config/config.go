package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Engine knobs
	Influence     float64       `env:"VIBE_INFLUENCE" default:"0.15"`
	HalfLife      time.Duration `env:"VIBE_HALF_LIFE" default:"3s"`
	Hold          time.Duration `env:"VIBE_HOLD" default:"2s"`
	Passion       float64       `env:"VIBE_PASSION" default:"0.65"`
	PassionCurve  float64       `env:"VIBE_PASSION_CURVE" default:"1.5"`
	PassionDims   string        `env:"VIBE_PASSION_DIMS" default:"vad"`
	Drama         float64       `env:"VIBE_DRAMA" default:"0.65"`
	AnchorWeights string        `env:"VIBE_ANCHOR_WEIGHTS" default:"9,9,1.44,0.09,0.09"`
	Neighbors     int           `env:"VIBE_NEIGHBORS" default:"1"`
	Baseline      string        `env:"VIBE_BASELINE" default:"0.5,0.5,0.5,0.5,0.5"`
	MinConfidence float64       `env:"VIBE_MIN_CONFIDENCE" default:"0.05"`
	Precision     int           `env:"VIBE_PRECISION" default:"2"`
	TickInterval  time.Duration `env:"VIBE_TICK_INTERVAL" default:"100ms"`

	// Data files; empty means the embedded defaults
	AnchorsFile string `env:"ANCHORS_FILE"`
	LexiconFile string `env:"LEXICON_FILE"`

	// Serial output; empty port means dry-run
	SerialPort string `env:"SERIAL_PORT"`
	SerialBaud int    `env:"SERIAL_BAUD" default:"115200"`

	// Optional adapters
	RedisURL           string        `env:"REDIS_URL"`
	RedisStateKey      string        `env:"REDIS_STATE_KEY" default:"vibe:state"`
	RedisChannel       string        `env:"REDIS_CHANNEL" default:"vibe:frames"`
	CheckpointInterval time.Duration `env:"CHECKPOINT_INTERVAL" default:"5s"`
	HistoryDB          string        `env:"HISTORY_DB"`

	// Slow climate baseline (OpenAI-compatible endpoint, e.g. Ollama's /v1)
	ClimateURL       string        `env:"CLIMATE_URL"`
	ClimateModel     string        `env:"CLIMATE_MODEL" default:"nemotron-mini:4b-instruct-q5_K_M"`
	ClimateAPIKey    string        `env:"CLIMATE_API_KEY" default:"ollama"`
	ClimateInfluence float64       `env:"CLIMATE_INFLUENCE" default:"0.7"`
	ClimateTimeout   time.Duration `env:"CLIMATE_TIMEOUT" default:"20s"`

	// Comma-separated browser origins allowed on /ws
	WSAllowedOrigins string `env:"WS_ALLOWED_ORIGINS"`
	WSMaxClients     int    `env:"WS_MAX_CLIENTS" default:"50"`

	RateLimit      float64 `env:"RATE_LIMIT" default:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"40"`
	MaxTextBytes   int     `env:"MAX_TEXT_BYTES" default:"16384"`
}

// AllowedOrigins splits WSAllowedOrigins on commas, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.WSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Vectors holds the vector-valued knobs parsed from their string form.
type Vectors struct {
	Baseline      domain.Vector
	AnchorWeights domain.Vector
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseVectors parses the vector-valued settings. Load has already validated them.
func (c *Config) ParseVectors() (Vectors, error) {
	baseline, err := domain.ParseVector(c.Baseline)
	if err != nil {
		return Vectors{}, fmt.Errorf("VIBE_BASELINE: %w", err)
	}
	weights, err := domain.ParseVector(c.AnchorWeights)
	if err != nil {
		return Vectors{}, fmt.Errorf("VIBE_ANCHOR_WEIGHTS: %w", err)
	}
	return Vectors{Baseline: baseline, AnchorWeights: weights}, nil
}

func validate(cfg *Config) error {
	unit := map[string]float64{
		"VIBE_INFLUENCE":      cfg.Influence,
		"VIBE_PASSION":        cfg.Passion,
		"VIBE_DRAMA":          cfg.Drama,
		"VIBE_MIN_CONFIDENCE": cfg.MinConfidence,
		"CLIMATE_INFLUENCE":   cfg.ClimateInfluence,
	}
	for name, value := range unit {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, value)
		}
	}

	if cfg.HalfLife < 0 {
		return errors.New("VIBE_HALF_LIFE must not be negative")
	}
	if cfg.Hold < 0 {
		return errors.New("VIBE_HOLD must not be negative")
	}
	if cfg.PassionCurve < 0 {
		return errors.New("VIBE_PASSION_CURVE must not be negative")
	}
	if cfg.Neighbors < 1 {
		return errors.New("VIBE_NEIGHBORS must be at least 1")
	}
	if cfg.Precision < 1 || cfg.Precision > 6 {
		return errors.New("VIBE_PRECISION must be between 1 and 6")
	}
	if cfg.TickInterval <= 0 {
		return errors.New("VIBE_TICK_INTERVAL must be positive")
	}
	if cfg.SerialBaud <= 0 {
		return errors.New("SERIAL_BAUD must be positive")
	}
	if cfg.WSMaxClients <= 0 {
		return errors.New("WS_MAX_CLIENTS must be positive")
	}
	if cfg.MaxTextBytes <= 0 {
		return errors.New("MAX_TEXT_BYTES must be positive")
	}

	vecs, err := cfg.ParseVectors()
	if err != nil {
		return err
	}
	if !vecs.Baseline.InUnitCube() {
		return errors.New("VIBE_BASELINE components must be between 0 and 1")
	}
	for i, w := range vecs.AnchorWeights {
		if w < 0 {
			return fmt.Errorf("VIBE_ANCHOR_WEIGHTS %s weight must not be negative", domain.ComponentName(i))
		}
	}

	return nil
}
