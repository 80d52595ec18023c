package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

// SailingHandler exposes schedule search and sailing status updates.
type SailingHandler struct {
	Schedule *service.ScheduleService
	Log      *slog.Logger
}

// NewSailingHandler constructs a SailingHandler.  schedule must be non-nil.
func NewSailingHandler(schedule *service.ScheduleService, log *slog.Logger) *SailingHandler {
	if schedule == nil {
		panic("nil schedule service passed to NewSailingHandler")
	}
	return &SailingHandler{Schedule: schedule, Log: orDefault(log)}
}

// Search handles GET /v1/sailings/search?origin=&destination=&date=YYYY-MM-DD&pax=.
// pax defaults to 1.  A date that does not parse is reported as a
// validation violation together with any other problem.
func (h *SailingHandler) Search(c echo.Context) error {
	origin := strings.TrimSpace(c.QueryParam("origin"))
	destination := strings.TrimSpace(c.QueryParam("destination"))

	v := &model.ValidationError{}
	var date time.Time
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			v.Add("date", "must be formatted YYYY-MM-DD")
		}
		date = d
	}
	pax := 1
	if raw := strings.TrimSpace(c.QueryParam("pax")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.Add("pax", "must be an integer")
		}
		pax = n
	}
	if v.HasViolations() {
		return respondError(c, h.Log, v)
	}

	rows, err := h.Schedule.SearchSailings(c.Request().Context(), origin, destination, date, pax)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  rows,
		"total": len(rows),
	})
}

// Get handles GET /v1/sailings/:id.
func (h *SailingHandler) Get(c echo.Context) error {
	s, err := h.Schedule.GetSailing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sailingView(s))
}

// UpdateStatus handles PATCH /v1/sailings/:id/status with a body of
// {"status": "delayed", "reason": "weather"}.
func (h *SailingHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.Schedule.UpdateSailingStatus(c.Request().Context(), c.Param("id"), body.Status, body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.Info("sailing status updated", "sailing_id", s.ID, "status", s.Status)
	return c.JSON(http.StatusOK, sailingView(s))
}

func sailingView(s *model.Sailing) echo.Map {
	return echo.Map{
		"sailing":         s,
		"available_seats": s.Available(),
	}
}
