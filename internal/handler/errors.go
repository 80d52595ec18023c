package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

// errorStatus maps a service error to an HTTP status and a response body.
// Unknown errors become a generic 500; their detail is only logged.
func errorStatus(err error) (int, echo.Map) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, echo.Map{
			"error":      "validation_failed",
			"violations": verr.Violations,
		}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": "not_found"}
	case errors.Is(err, service.ErrCapacityExhausted):
		return http.StatusConflict, echo.Map{"error": "capacity_exhausted"}
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, echo.Map{"error": "invalid_transition"}
	default:
		return http.StatusInternalServerError, echo.Map{"error": "internal_error"}
	}
}

func respondError(c echo.Context, log *slog.Logger, err error) error {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err)
	}
	return c.JSON(status, body)
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
