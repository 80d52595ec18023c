package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

// HoldRepo provides data access to the holds table.  All methods compare
// timestamps against the instant passed by the caller, which must be UTC.
type HoldRepo struct {
	db *sqlx.DB
}

// NewHoldRepo returns a new HoldRepo bound to the provided database.
func NewHoldRepo(db *sqlx.DB) *HoldRepo { return &HoldRepo{db: db} }

// Create inserts a hold outside of any transaction.
func (r *HoldRepo) Create(ctx context.Context, h *model.Hold) error {
	return insertHold(ctx, r.db, h)
}

// CreateTx inserts a hold within the provided transaction.  The caller
// must commit or roll back.
func (r *HoldRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, h *model.Hold) error {
	return insertHold(ctx, tx, h)
}

func insertHold(ctx context.Context, q sqlx.ExtContext, h *model.Hold) error {
	const stmt = `INSERT INTO holds (id, sailing_id, seat_count, expires_at, consumed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, q.Rebind(stmt),
		h.ID, h.SailingID, h.SeatCount, h.ExpiresAt.UTC(), h.Consumed, h.CreatedAt.UTC())
	return err
}

// GetByID returns the hold or ErrNotFound.
func (r *HoldRepo) GetByID(ctx context.Context, id string) (*model.Hold, error) {
	return getHold(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *HoldRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Hold, error) {
	return getHold(ctx, tx, id)
}

func getHold(ctx context.Context, q sqlx.ExtContext, id string) (*model.Hold, error) {
	var h model.Hold
	if err := getOne(ctx, q, &h,
		`SELECT id, sailing_id, seat_count, expires_at, consumed, created_at FROM holds WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &h, nil
}

// ConsumeTx flips the hold's consumed flag if, and only if, it is still
// unconsumed and unexpired at now.  Guard and write are one statement; of
// any number of concurrent callers at most one sees true.
func (r *HoldRepo) ConsumeTx(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) (bool, error) {
	const q = `UPDATE holds SET consumed = TRUE WHERE id = ? AND consumed = FALSE AND expires_at > ?`
	affected, err := execAffected(ctx, tx, q, id, now.UTC())
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteExpired removes every unconsumed hold whose expiry is at or before
// now and returns how many were removed.  Consumed holds are excluded by
// the predicate itself, so a consume that commits first is never undone.
func (r *HoldRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM holds WHERE consumed = FALSE AND expires_at <= ?`
	return execAffected(ctx, r.db, q, now.UTC())
}
