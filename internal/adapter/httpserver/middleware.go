package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brainwavecollective/vibe-eyes/internal/platform/correlation"
	apperrors "github.com/brainwavecollective/vibe-eyes/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// correlationMiddleware adopts the caller's X-Request-ID when usable and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// ErrorHandlingMiddleware renders handler errors as structured JSON. Echo's own
// HTTP errors pass through to the server's HTTPErrorHandler.
func ErrorHandlingMiddleware(recorder ErrorRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structured := apperrors.AsStructuredError(err)
			return writeError(c, structured.HTTPStatus(), structured, recorder)
		}
	}
}

// handleHTTPError is installed as echo's HTTPErrorHandler so router and middleware
// errors (404, 405, 413, 429) share the structured response shape.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	// echo's status is kept as is, so a 413 or 429 is not flattened to 400
	structured := apperrors.AsStructuredError(err)
	status := structured.HTTPStatus()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		structured = wrapHTTPError(httpErr)
		status = httpErr.Code
	}

	if werr := writeError(c, status, structured, s.errors); werr != nil {
		slog.Error("Failed to write error response", "error", werr)
	}
}

func writeError(c echo.Context, status int, err *apperrors.Error, recorder ErrorRecorder) error {
	logError(c, status, err)
	if recorder != nil {
		recorder.RecordError(string(err.Type))
	}
	if err := c.JSON(status, err.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, status int, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Unavailable", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func wrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}
	if message == "" {
		message = "internal server error"
	}

	return &apperrors.Error{
		Type:    apperrors.TypeForStatus(httpErr.Code),
		Message: message,
		Cause:   httpErr.Internal,
		Context: make(map[string]any),
	}
}
