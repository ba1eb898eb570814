package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	apperrors "github.com/brainwavecollective/vibe-eyes/internal/platform/errors"
	"github.com/brainwavecollective/vibe-eyes/internal/vibe"
	"github.com/labstack/echo/v4"
)

type transcriptRequest struct {
	Text      string   `json:"text"`
	Influence *float64 `json:"influence"`
	Passion   *float64 `json:"passion"`
	Drama     *float64 `json:"drama"`
}

type transcriptResponse struct {
	ID                 string               `json:"id"`
	Vibe               domain.Vector        `json:"vibe"`
	Line               string               `json:"line"`
	InfluenceUsed      float64              `json:"influence_used"`
	PassionUsed        float64              `json:"passion_used"`
	DramaUsed          float64              `json:"drama_used"`
	SentencesProcessed int                  `json:"sentences_processed"`
	TranscriptCount    int64                `json:"transcript_count"`
	ContextWords       int                  `json:"context_words"`
	EmptySignal        bool                 `json:"empty_signal"`
	Warnings           []string             `json:"warnings,omitempty"`
	Anchor             *domain.Match        `json:"anchor,omitempty"`
	Trace              *vibe.Trace          `json:"trace,omitempty"`
	Sentences          []vibe.SentenceTrace `json:"sentences,omitempty"`
}

func (s *Server) handleTranscript(c echo.Context) error {
	var req transcriptRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed JSON body")
	}
	var warnings []string
	if len(req.Text) > s.config.MaxTextBytes {
		original := len(req.Text)
		req.Text = truncateUTF8(req.Text, s.config.MaxTextBytes)
		warnings = append(warnings, fmt.Sprintf("text truncated from %d to %d bytes", original, len(req.Text)))
		slog.WarnContext(c.Request().Context(), "Transcript text truncated", "bytes", original, "max_bytes", s.config.MaxTextBytes)
	}

	res, err := s.app.SubmitTranscript(c.Request().Context(), vibe.Request{
		Text:      req.Text,
		Influence: req.Influence,
		Passion:   req.Passion,
		Drama:     req.Drama,
	})
	if err != nil {
		return apperrors.InternalError("failed to process transcript", err)
	}

	processed := 0
	for _, st := range res.Sentences {
		if !st.Skipped {
			processed++
		}
	}

	resp := transcriptResponse{
		ID:                 res.ID.String(),
		Vibe:               res.Frame.Vibe,
		Line:               res.Frame.Line,
		InfluenceUsed:      res.InfluenceUsed,
		PassionUsed:        res.PassionUsed,
		DramaUsed:          res.DramaUsed,
		SentencesProcessed: processed,
		TranscriptCount:    res.TranscriptCount,
		ContextWords:       res.ContextWords,
		EmptySignal:        res.EmptySignal,
		Warnings:           append(warnings, res.Warnings...),
		Anchor:             res.Frame.Anchor,
	}
	if c.QueryParam("debug") == "true" {
		resp.Trace = &res.Trace
		resp.Sentences = res.Sentences
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func (s *Server) handleStatus(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Status()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReset(c echo.Context) error {
	frame := s.app.Reset(c.Request().Context())

	response := map[string]any{
		"status": "ok",
		"vibe":   frame.Vibe,
		"line":   frame.Line,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
