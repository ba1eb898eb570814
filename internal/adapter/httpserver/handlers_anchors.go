package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/brainwavecollective/vibe-eyes/internal/anchors"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	apperrors "github.com/brainwavecollective/vibe-eyes/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	maxNearest          = 20
)

type anchorsResponse struct {
	Anchors []domain.Anchor `json:"anchors"`
	Stats   anchors.Stats   `json:"stats"`
}

type nearestResponse struct {
	Query   domain.Vector  `json:"query"`
	Matches []domain.Match `json:"matches"`
}

func (s *Server) handleAnchors(c echo.Context) error {
	list, stats := s.app.Anchors()
	if err := c.JSON(http.StatusOK, anchorsResponse{Anchors: list, Stats: stats}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleNearest(c echo.Context) error {
	raw := c.QueryParam("v")
	v, err := domain.ParseVector(raw)
	if err != nil {
		return apperrors.ValidationError("invalid vector: "+err.Error()).WithField("v", raw)
	}
	if !v.InUnitCube() {
		return apperrors.ValidationError("vector components must be between 0 and 1").WithField("v", raw)
	}

	k, err := intParam(c, "k", 1)
	if err != nil || k < 1 || k > maxNearest {
		return apperrors.ValidationError(fmt.Sprintf("k must be between 1 and %d", maxNearest)).WithField("k", c.QueryParam("k"))
	}

	resp := nearestResponse{Query: v, Matches: s.app.Nearest(v, k)}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleHistory(c echo.Context) error {
	limit, err := intParam(c, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit)).WithField("limit", c.QueryParam("limit"))
	}

	entries, err := s.app.History(c.Request().Context(), limit)
	if errors.Is(err, domain.ErrHistoryDisabled) {
		return apperrors.UnavailableError("history is disabled", err)
	}
	if err != nil {
		return apperrors.InternalError("failed to load history", err).WithField("limit", limit)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}

	if err := c.JSON(http.StatusOK, map[string]any{"entries": entries}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
