package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

const sailingColumns = `id, origin_port, dest_port, departure_time, arrival_time, capacity,
	seats_allocated, vehicle_capacity, status, status_reason, status_updated_at, created_at, updated_at`

// SailingRepo manages persistence for sailings and owns the
// seats_allocated counter that bounds every booking.
type SailingRepo struct {
	db *sqlx.DB
}

// NewSailingRepo returns a SailingRepo bound to the given database.
func NewSailingRepo(db *sqlx.DB) *SailingRepo { return &SailingRepo{db: db} }

// Create inserts a new sailing.  Status defaults to on_time and the
// allocation counter starts at zero.
func (r *SailingRepo) Create(ctx context.Context, s *model.Sailing) error {
	if s.Status == "" {
		s.Status = model.SailingOnTime
	}
	const q = `INSERT INTO sailings (id, origin_port, dest_port, departure_time, arrival_time, capacity,
		seats_allocated, vehicle_capacity, status, status_reason, status_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		s.ID, s.OriginPort, s.DestPort, s.DepartureTime.UTC(), s.ArrivalTime, s.Capacity,
		s.VehicleCapacity, string(s.Status), s.StatusReason, s.StatusUpdatedAt, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	s.SeatsAllocated = 0
	return nil
}

// GetByID returns the sailing with the given id or ErrNotFound.
func (r *SailingRepo) GetByID(ctx context.Context, id string) (*model.Sailing, error) {
	return getSailing(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *SailingRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Sailing, error) {
	return getSailing(ctx, tx, id)
}

func getSailing(ctx context.Context, q sqlx.ExtContext, id string) (*model.Sailing, error) {
	var s model.Sailing
	if err := getOne(ctx, q, &s, `SELECT `+sailingColumns+` FROM sailings WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// AllocateTx adds n seats to the sailing's allocation if they fit.  The
// capacity check and the increment are a single conditional update, so
// concurrent allocations can never push the counter past capacity.  It
// returns false when the seats do not fit or the sailing is cancelled.
func (r *SailingRepo) AllocateTx(ctx context.Context, tx *sqlx.Tx, id string, n int, now time.Time) (bool, error) {
	const q = `UPDATE sailings
		SET seats_allocated = seats_allocated + ?, updated_at = ?
		WHERE id = ? AND seats_allocated + ? <= capacity AND status <> ?`
	affected, err := execAffected(ctx, tx, q, n, now, id, n, string(model.SailingCancelled))
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseTx gives n seats back to the sailing.  The counter never drops
// below zero.
func (r *SailingRepo) ReleaseTx(ctx context.Context, tx *sqlx.Tx, id string, n int, now time.Time) error {
	const q = `UPDATE sailings
		SET seats_allocated = CASE WHEN seats_allocated >= ? THEN seats_allocated - ? ELSE 0 END, updated_at = ?
		WHERE id = ?`
	_, err := execAffected(ctx, tx, q, n, n, now, id)
	return err
}

// UpdateStatus changes the operational status of a sailing.  The schedule
// columns are never touched.
func (r *SailingRepo) UpdateStatus(ctx context.Context, id string, status model.SailingStatus, reason *string, now time.Time) error {
	const q = `UPDATE sailings SET status = ?, status_reason = ?, status_updated_at = ?, updated_at = ? WHERE id = ?`
	affected, err := execAffected(ctx, r.db, q, string(status), reason, now, now, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
