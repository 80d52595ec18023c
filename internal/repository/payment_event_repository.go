package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

// PaymentEventRepo records processed payment provider events.  The event
// id is the primary key, which is what makes applying an event idempotent.
type PaymentEventRepo struct {
	db *sqlx.DB
}

// NewPaymentEventRepo returns a new PaymentEventRepo bound to the given database.
func NewPaymentEventRepo(db *sqlx.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

// InsertTx records the event inside the caller's transaction.  A second
// insert with the same event id fails with ErrDuplicateEvent.
func (r *PaymentEventRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, e *model.PaymentEvent) error {
	const q = `INSERT INTO payment_events (event_id, event_type, booking_id, processed_at) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, tx.Rebind(q), e.EventID, e.EventType, e.BookingID, e.ProcessedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateEvent
	}
	return err
}

// GetByID returns a recorded event or ErrNotFound.
func (r *PaymentEventRepo) GetByID(ctx context.Context, eventID string) (*model.PaymentEvent, error) {
	var e model.PaymentEvent
	if err := getOne(ctx, r.db, &e,
		`SELECT event_id, event_type, booking_id, processed_at FROM payment_events WHERE event_id = ?`, eventID); err != nil {
		return nil, err
	}
	return &e, nil
}

// Count returns how many events have been recorded.
func (r *PaymentEventRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM payment_events`)
	return n, err
}
