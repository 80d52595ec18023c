package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/service"
)

// ScanHandler is the HTTP face of the redemption gate.
type ScanHandler struct {
	Gate *service.Gate
	Log  *slog.Logger
}

// NewScanHandler constructs a ScanHandler.  gate must be non-nil.
func NewScanHandler(gate *service.Gate, log *slog.Logger) *ScanHandler {
	if gate == nil {
		panic("nil gate passed to NewScanHandler")
	}
	return &ScanHandler{Gate: gate, Log: orDefault(log)}
}

// Scan handles POST /v1/scan with {"token": "..."}.  Every decision,
// admitted or refused, is a 200; only a missing token is a 400.
func (h *ScanHandler) Scan(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}
	d, err := h.Gate.Redeem(c.Request().Context(), token)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}
