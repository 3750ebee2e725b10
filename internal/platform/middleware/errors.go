package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/apperr"
)

const retryLaterMessage = "the service is temporarily unavailable, please retry later"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string              `json:"error"`
	Fields    []apperr.FieldError `json:"fields,omitempty"`
	Guidance  string              `json:"guidance,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// Translate maps an error to its HTTP status and client-safe body.
func Translate(err error) (int, ErrorBody) {
	var (
		conflict *apperr.ConflictError
		invalid  *apperr.ValidationError
		missing  *apperr.NotFoundError
		httpErr  *echo.HTTPError
	)

	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, ErrorBody{Error: conflict.Message, Guidance: conflict.Guidance}
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, ErrorBody{Error: "validation failed", Fields: invalid.Fields}
	case errors.As(err, &missing):
		return http.StatusNotFound, ErrorBody{Error: missing.Error()}
	case errors.Is(err, apperr.ErrStore):
		return http.StatusServiceUnavailable, ErrorBody{Error: retryLaterMessage}
	case errors.As(err, &httpErr):
		return httpErr.Code, ErrorBody{Error: fmt.Sprint(httpErr.Message)}
	}
	return http.StatusInternalServerError, ErrorBody{Error: "internal server error"}
}

// ErrorHandler is installed as echo's HTTPErrorHandler. Server-side failures
// are logged with full detail; the client only sees the translated body.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Translate(err)
		body.RequestID, _ = c.Get("request_id").(string)

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", body.RequestID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", body.RequestID).Msg("write error response")
		}
	}
}
