package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

// maxWebhookBody caps the payment provider payload read into memory.
const maxWebhookBody = 1 << 20

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	Bookings *service.BookingService
	Log      *slog.Logger
}

// NewPaymentHandler constructs a PaymentHandler.  bookings must be non-nil.
func NewPaymentHandler(bookings *service.BookingService, log *slog.Logger) *PaymentHandler {
	if bookings == nil {
		panic("nil booking service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Bookings: bookings, Log: orDefault(log)}
}

// Webhook handles POST /v1/payments/webhook.  It answers 200 once the event
// is recorded, including redeliveries, so the provider stops retrying.
// A storage failure answers 500 and the provider delivers again.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in, err := model.ParseProviderEvent(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event", "message": err.Error()})
	}
	res, err := h.Bookings.ApplyPaymentEvent(c.Request().Context(), in)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if res.Duplicate {
		h.Log.Info("payment event redelivered", "event_id", in.EventID)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
