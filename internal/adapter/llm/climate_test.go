package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	calls   atomic.Int32
	respond func(call int32, w http.ResponseWriter, prompt string)
}

func (f *fakeModel) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		assert.Equal(t, "test-model", req.Model)
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}
		f.respond(f.calls.Add(1), w, prompt)
	})
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func fail(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"message":"upstream said %d","type":"server_error"}}`, status)
}

func newTestSource(t *testing.T, model *fakeModel) *ClimateSource {
	t.Helper()
	srv := httptest.NewServer(model.handler(t))
	t.Cleanup(srv.Close)
	return NewClimateSource(Config{
		BaseURL:     srv.URL + "/v1/",
		Model:       "test-model",
		APIKey:      "ollama",
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
}

func TestClimate_ParsesModelReply(t *testing.T) {
	model := &fakeModel{respond: func(_ int32, w http.ResponseWriter, prompt string) {
		assert.Contains(t, prompt, "Text:\nwe made it home\n")
		reply(w, "0.62 0.55 0.58 0.40 0.70")
	}}
	src := newTestSource(t, model)

	v, err := src.Climate(context.Background(), "we made it home")

	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.62, 0.55, 0.58, 0.40, 0.70}, v)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestClimate_RetriesServerErrors(t *testing.T) {
	model := &fakeModel{respond: func(call int32, w http.ResponseWriter, _ string) {
		if call < 3 {
			fail(w, http.StatusBadGateway)
			return
		}
		reply(w, "0.5 0.5 0.5 0.5 0.5")
	}}
	src := newTestSource(t, model)

	v, err := src.Climate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, domain.Neutral, v)
	assert.Equal(t, int32(3), model.calls.Load())
}

func TestClimate_ClientErrorIsPermanent(t *testing.T) {
	model := &fakeModel{respond: func(_ int32, w http.ResponseWriter, _ string) {
		fail(w, http.StatusNotFound)
	}}
	src := newTestSource(t, model)

	_, err := src.Climate(context.Background(), "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClimateUnavailable)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestClimate_MalformedReplyIsNotRetried(t *testing.T) {
	model := &fakeModel{respond: func(_ int32, w http.ResponseWriter, _ string) {
		reply(w, "I think the mood is upbeat.")
	}}
	src := newTestSource(t, model)

	_, err := src.Climate(context.Background(), "hello")

	assert.ErrorIs(t, err, domain.ErrClimateUnavailable)
	assert.ErrorIs(t, err, errMalformedResponse)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestClimate_GivesUpAfterMaxAttempts(t *testing.T) {
	model := &fakeModel{respond: func(_ int32, w http.ResponseWriter, _ string) {
		fail(w, http.StatusInternalServerError)
	}}
	src := newTestSource(t, model)

	_, err := src.Climate(context.Background(), "hello")

	assert.ErrorIs(t, err, domain.ErrClimateUnavailable)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), model.calls.Load())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    domain.Vector
		wantErr bool
	}{
		{name: "plain", output: "0.25 0.48 0.82 0.40 0.70", want: domain.Vector{0.25, 0.48, 0.82, 0.40, 0.70}},
		{name: "chatty", output: "Sure! Here you go: 0.6, 0.5, 0.55, 0.4, 0.7 hope that helps", want: domain.Vector{0.6, 0.5, 0.55, 0.4, 0.7}},
		{name: "integers and one", output: "1.0 0 1 0.5 0.5", want: domain.Vector{1, 0, 1, 0.5, 0.5}},
		{name: "extra numbers ignored", output: "0.1 0.2 0.3 0.4 0.5 0.6", want: domain.Vector{0.1, 0.2, 0.3, 0.4, 0.5}},
		{name: "too few", output: "0.5 0.5 0.5", wantErr: true},
		{name: "empty", output: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, errMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("the storm has passed")

	assert.True(t, strings.HasSuffix(p, "Text:\nthe storm has passed\n\nOutput:\n"))
	assert.Contains(t, p, "All values must remain between 0.2 and 0.8.")
}
