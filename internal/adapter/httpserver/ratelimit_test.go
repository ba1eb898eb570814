package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitedServer returns a server whose transcript and reset routes allow one
// request per client before throttling.
func limitedServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()
	cfg.RateLimit = 0.01
	cfg.RateLimitBurst = 1
	return NewServer(cfg, &mockAppService{})
}

func postFrom(srv *Server, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_ThrottlesTranscripts(t *testing.T) {
	srv := limitedServer(t)

	rec := postFrom(srv, "/transcript", "1.2.3.4:1234")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postFrom(srv, "/transcript", "1.2.3.4:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	srv := limitedServer(t)

	assert.Equal(t, http.StatusOK, postFrom(srv, "/transcript", "1.2.3.4:1234").Code)
	assert.Equal(t, http.StatusOK, postFrom(srv, "/transcript", "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(srv, "/transcript", "1.2.3.4:1234").Code)
}

func TestRateLimit_SharedAcrossWriteRoutes(t *testing.T) {
	srv := limitedServer(t)

	assert.Equal(t, http.StatusOK, postFrom(srv, "/transcript", "1.2.3.4:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(srv, "/api/reset", "1.2.3.4:1234").Code)
}

func TestRateLimit_ReadRoutesUnlimited(t *testing.T) {
	srv := limitedServer(t)

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_DisabledWhenRateIsZero(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0
	srv := NewServer(cfg, &mockAppService{})

	for range 5 {
		assert.Equal(t, http.StatusOK, postFrom(srv, "/transcript", "1.2.3.4:1234").Code)
	}
}
