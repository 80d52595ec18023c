package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/repository"
)

// ScheduleService answers schedule lookups and records operational status
// changes.  It never touches allocations.
type ScheduleService struct {
	sailings *repository.SailingRepo
	clock    clock.Clock
}

func NewScheduleService(sailings *repository.SailingRepo, clk clock.Clock) *ScheduleService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &ScheduleService{sailings: sailings, clock: clk}
}

// SearchSailings returns the sailings from origin to destination departing
// on the UTC calendar day of date with at least pax seats left.
func (s *ScheduleService) SearchSailings(ctx context.Context, origin, destination string, date time.Time, pax int) ([]repository.SailingRow, error) {
	v := &model.ValidationError{}
	if strings.TrimSpace(origin) == "" {
		v.Add("origin", "is required")
	}
	if strings.TrimSpace(destination) == "" {
		v.Add("destination", "is required")
	}
	if date.IsZero() {
		v.Add("date", "is required")
	}
	if pax < model.MinPassengers || pax > model.MaxPassengers {
		v.Add("pax", "must be between 1 and 20")
	}
	if v.HasViolations() {
		return nil, v
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.sailings.Search(ctx, repository.SailingSearchQuery{
		Origin:      origin,
		Destination: destination,
		From:        day,
		To:          day.AddDate(0, 0, 1),
		MinSeats:    pax,
	})
	if err != nil {
		return nil, fmt.Errorf("search sailings: %w", err)
	}
	return rows, nil
}

// GetSailing returns one sailing.
func (s *ScheduleService) GetSailing(ctx context.Context, id string) (*model.Sailing, error) {
	sailing, err := s.sailings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sailing, err
}

// UpdateSailingStatus sets the operational status of a sailing.
func (s *ScheduleService) UpdateSailingStatus(ctx context.Context, id, rawStatus, reason string) (*model.Sailing, error) {
	status, ok := model.ParseSailingStatus(rawStatus)
	if !ok {
		v := &model.ValidationError{}
		v.Add("status", "must be one of on_time, delayed, cancelled")
		return nil, v
	}
	err := s.sailings.UpdateStatus(ctx, id, status, optional(strings.TrimSpace(reason)), s.clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update sailing status: %w", err)
	}
	return s.GetSailing(ctx, id)
}
