package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/repository"
)

// CapacityLedger issues time-boxed holds on sailing seats and converts
// them into permanent allocations.  Capacity is checked when a hold is
// consumed, never when it is created, so any number of holds may coexist;
// the allocation counter on the sailing is what bounds bookings.
type CapacityLedger struct {
	db       *sqlx.DB
	holds    *repository.HoldRepo
	sailings *repository.SailingRepo
	clock    clock.Clock
	log      *slog.Logger
}

// NewCapacityLedger wires a ledger over the given repositories.
func NewCapacityLedger(db *sqlx.DB, holds *repository.HoldRepo, sailings *repository.SailingRepo, clk clock.Clock, log *slog.Logger) *CapacityLedger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CapacityLedger{db: db, holds: holds, sailings: sailings, clock: clk, log: log}
}

// CreateHold records a hold for seatCount seats expiring ttl from now.  A
// non-positive ttl produces a hold that is already expired.
func (l *CapacityLedger) CreateHold(ctx context.Context, sailingID string, seatCount int, ttl time.Duration) (*model.Hold, error) {
	h, err := l.newHold(sailingID, seatCount, ttl)
	if err != nil {
		return nil, err
	}
	if err := l.holds.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create hold: %w", err)
	}
	return h, nil
}

// CreateHoldTx is CreateHold inside the caller's transaction.
func (l *CapacityLedger) CreateHoldTx(ctx context.Context, tx *sqlx.Tx, sailingID string, seatCount int, ttl time.Duration) (*model.Hold, error) {
	h, err := l.newHold(sailingID, seatCount, ttl)
	if err != nil {
		return nil, err
	}
	if err := l.holds.CreateTx(ctx, tx, h); err != nil {
		return nil, fmt.Errorf("create hold: %w", err)
	}
	return h, nil
}

func (l *CapacityLedger) newHold(sailingID string, seatCount int, ttl time.Duration) (*model.Hold, error) {
	if seatCount <= 0 {
		v := &model.ValidationError{}
		v.Add("seat_count", "must be greater than zero")
		return nil, v
	}
	if ttl < 0 {
		ttl = 0
	}
	now := l.clock.Now()
	return &model.Hold{
		ID:        uuid.NewString(),
		SailingID: sailingID,
		SeatCount: seatCount,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// ConsumeHold turns the hold into a permanent allocation.  It fails with
// ErrHoldUnavailable, and changes nothing, when the hold is unknown,
// already consumed, expired, or its seats no longer fit on the sailing.
func (l *CapacityLedger) ConsumeHold(ctx context.Context, holdID string) error {
	return repository.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		return l.ConsumeHoldTx(ctx, tx, holdID)
	})
}

// ConsumeHoldTx is ConsumeHold inside the caller's transaction.  On
// ErrHoldUnavailable the caller must roll back.
func (l *CapacityLedger) ConsumeHoldTx(ctx context.Context, tx *sqlx.Tx, holdID string) error {
	h, err := l.holds.GetByIDTx(ctx, tx, holdID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrHoldUnavailable
	}
	if err != nil {
		return fmt.Errorf("load hold: %w", err)
	}

	now := l.clock.Now()
	if !h.Consumable(now) {
		l.log.Info("hold not consumable", "hold_id", holdID, "consumed", h.Consumed, "expires_at", h.ExpiresAt)
		return ErrHoldUnavailable
	}
	ok, err := l.holds.ConsumeTx(ctx, tx, holdID, now)
	if err != nil {
		return fmt.Errorf("consume hold: %w", err)
	}
	if !ok {
		return ErrHoldUnavailable
	}

	ok, err = l.sailings.AllocateTx(ctx, tx, h.SailingID, h.SeatCount, now)
	if err != nil {
		return fmt.Errorf("allocate seats: %w", err)
	}
	if !ok {
		l.log.Info("seats no longer available", "hold_id", holdID, "sailing_id", h.SailingID, "seats", h.SeatCount)
		return ErrHoldUnavailable
	}
	return nil
}

// ReleaseExpiredHolds deletes every unconsumed hold whose expiry is at or
// before now.  It is idempotent and safe to run next to consumers.
func (l *CapacityLedger) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.holds.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	if n > 0 {
		l.log.Info("released expired holds", "count", n)
	}
	return n, nil
}

// RunSweeper calls ReleaseExpiredHolds every interval until ctx is done.
func (l *CapacityLedger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.ReleaseExpiredHolds(ctx, l.clock.Now()); err != nil && ctx.Err() == nil {
				l.log.Error("hold sweep failed", "err", err)
			}
		}
	}
}
