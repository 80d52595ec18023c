package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

const ticketColumns = `id, booking_id, passenger_name, email, token, used, used_at, created_at`

// TicketRepo persists tickets.  The used flag is only ever changed by
// MarkUsed.
type TicketRepo struct {
	db *sqlx.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateTx inserts a ticket within the caller's transaction.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, t *model.Ticket) error {
	const q = `INSERT INTO tickets (id, booking_id, passenger_name, email, token, used, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, tx.Rebind(q),
		t.ID, t.BookingID, t.PassengerName, t.Email, t.Token, t.Used, t.UsedAt, t.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetByID returns the ticket or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := getOne(ctx, r.db, &t, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByPassenger finds the ticket issued to passenger on booking.  The
// pair is unique per booking.
func (r *TicketRepo) GetByPassenger(ctx context.Context, bookingID, passenger string) (*model.Ticket, error) {
	var t model.Ticket
	if err := getOne(ctx, r.db, &t,
		`SELECT `+ticketColumns+` FROM tickets WHERE booking_id = ? AND passenger_name = ?`,
		bookingID, passenger); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByBooking returns every ticket of a booking in creation order.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Ticket, error) {
	out := make([]model.Ticket, 0)
	q := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ? ORDER BY created_at, passenger_name`)
	if err := r.db.SelectContext(ctx, &out, q, bookingID); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkUsed flips the ticket's used flag in a single conditional update.
// The guard requires the ticket to be unused and its booking to be
// confirmed; exactly one of any number of concurrent callers gets true.
func (r *TicketRepo) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	const q = `UPDATE tickets SET used = TRUE, used_at = ?
		WHERE id = ? AND used = FALSE
		AND booking_id IN (SELECT id FROM bookings WHERE status = ?)`
	affected, err := execAffected(ctx, r.db, q, now.UTC(), id, string(model.BookingConfirmed))
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
