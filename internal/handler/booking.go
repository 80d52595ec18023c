package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

// BookingHandler exposes the booking lifecycle and ticket retrieval.
type BookingHandler struct {
	Bookings *service.BookingService
	Log      *slog.Logger
}

// NewBookingHandler constructs a BookingHandler.  bookings must be non-nil.
func NewBookingHandler(bookings *service.BookingService, log *slog.Logger) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Log: orDefault(log)}
}

type createBookingBody struct {
	SailingID  string            `json:"sailing_id"`
	Passengers []model.Passenger `json:"passengers"`
	Vehicle    *model.Vehicle    `json:"vehicle"`
	Notes      string            `json:"notes"`
}

// Create handles POST /v1/bookings.  On success it answers 201 with the
// booking id, reference and status.  The signed tickets are fetched with
// GET /v1/bookings/:id.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req, err := model.NewBookingRequestFrom(body.SailingID, body.Passengers, body.Vehicle, body.Notes)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	d, err := h.Bookings.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":        d.ID,
		"booking_reference": d.Reference,
		"status":            d.Status,
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	d, err := h.Bookings.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// GetByReference handles GET /v1/bookings/ref/:reference.
func (h *BookingHandler) GetByReference(c echo.Context) error {
	d, err := h.Bookings.GetBookingByReference(c.Request().Context(), c.Param("reference"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	b, err := h.Bookings.ConfirmBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.  Allocated seats go back to
// the sailing.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.Bookings.CancelBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GetTicket handles GET /v1/tickets/:id.
func (h *BookingHandler) GetTicket(c echo.Context) error {
	t, err := h.Bookings.GetTicket(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
