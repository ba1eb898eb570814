// Package llm estimates the slow emotional climate of recent text with a chat model
// behind an OpenAI-compatible API, such as a local Ollama server.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/brainwavecollective/vibe-eyes/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxResponseTokens  = 42
)

// numberPattern tolerates a chatty model: it picks the first numbers in [0,1] out of any prose.
var numberPattern = regexp.MustCompile(`0\.\d+|1\.0+|[01]`)

var errMalformedResponse = errors.New("malformed climate response")

type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxAttempts int
	Backoff     time.Duration
	Clock       clockwork.Clock
}

// ClimateSource implements domain.ClimateSource.
type ClimateSource struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

func NewClimateSource(cfg Config) *ClimateSource {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	slog.Info("Initializing climate model client", "base_url", oc.BaseURL, "model", cfg.Model)
	return &ClimateSource{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		policy: retry.Policy{
			MaxAttempts:      cfg.MaxAttempts,
			InitialBackoff:   cfg.Backoff,
			RateLimitBackoff: 4 * cfg.Backoff,
			MaxBackoff:       8 * cfg.Backoff,
			Clock:            cfg.Clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Retrying climate request", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Climate returns the model's five-component estimate of the text's sustained mood.
// Every failure wraps domain.ErrClimateUnavailable.
func (s *ClimateSource) Climate(ctx context.Context, text string) (domain.Vector, error) {
	v, err := retry.Do(ctx, s.policy, classify, func(ctx context.Context) (domain.Vector, error) {
		return s.request(ctx, text)
	})
	if err != nil {
		return domain.Vector{}, fmt.Errorf("%w: %w", domain.ErrClimateUnavailable, err)
	}
	slog.InfoContext(ctx, "Climate estimated", "vibe", v.String())
	return v, nil
}

func (s *ClimateSource) request(ctx context.Context, text string) (domain.Vector, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text)},
		},
		Temperature: 0,
		MaxTokens:   maxResponseTokens,
		Stop:        []string{"\n"},
	})
	if err != nil {
		return domain.Vector{}, fmt.Errorf("climate model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Vector{}, fmt.Errorf("%w: no choices", errMalformedResponse)
	}
	return ParseResponse(resp.Choices[0].Message.Content)
}

// ParseResponse extracts the first five numbers in [0,1] from a model reply.
func ParseResponse(output string) (domain.Vector, error) {
	output = strings.TrimSpace(output)
	numbers := numberPattern.FindAllString(output, domain.Dimensions)
	if len(numbers) < domain.Dimensions {
		return domain.Vector{}, fmt.Errorf("%w: %q", errMalformedResponse, output)
	}
	var v domain.Vector
	for i, n := range numbers {
		x, err := strconv.ParseFloat(n, 64)
		if err != nil || x < 0 || x > 1 {
			return domain.Vector{}, fmt.Errorf("%w: %q", errMalformedResponse, output)
		}
		v[i] = x
	}
	return v, nil
}

func classify(err error) retry.Action {
	if errors.Is(err, errMalformedResponse) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return retry.After
	case status >= 500:
		return retry.Retry
	case status >= 400:
		return retry.Stop
	default:
		// transport errors: the local model server may still be starting
		return retry.Retry
	}
}
