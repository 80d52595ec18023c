package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

const bookingColumns = `id, sailing_id, reference, status, pax_count, vehicle_type, vehicle_plate,
	notes, created_at, confirmed_at, cancelled_at, refunded_at`

// BookingRepo provides persistence for bookings.  Status changes only
// happen through TransitionTx, which guards on the allowed source states.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a booking within an existing transaction.  A collision
// on the reference column is reported as ErrDuplicateReference.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, sailing_id, reference, status, pax_count, vehicle_type, vehicle_plate,
		notes, created_at, confirmed_at, cancelled_at, refunded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, tx.Rebind(q),
		b.ID, b.SailingID, b.Reference, string(b.Status), b.PaxCount, b.VehicleType, b.VehiclePlate,
		b.Notes, b.CreatedAt.UTC(), b.ConfirmedAt, b.CancelledAt, b.RefundedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

// GetByID returns the booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return getBooking(ctx, r.db, `id = ?`, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Booking, error) {
	return getBooking(ctx, tx, `id = ?`, id)
}

// GetByReference looks a booking up by its human-readable reference.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return getBooking(ctx, r.db, `reference = ?`, ref)
}

func getBooking(ctx context.Context, q sqlx.ExtContext, where string, arg any) (*model.Booking, error) {
	var b model.Booking
	if err := getOne(ctx, q, &b, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, arg); err != nil {
		return nil, err
	}
	return &b, nil
}

// TransitionTx moves the booking to next when its current status is one
// of the allowed sources for next.  It returns false, without error, when
// the guard does not hold; the caller decides whether that is a no-op or
// a conflict.
func (r *BookingRepo) TransitionTx(ctx context.Context, tx *sqlx.Tx, id string, next model.BookingStatus, now time.Time) (bool, error) {
	return r.TransitionFromTx(ctx, tx, id, model.SourcesFor(next), next, now)
}

// TransitionFromTx is TransitionTx with an explicit, narrower set of
// source statuses.  An empty set never matches.
func (r *BookingRepo) TransitionFromTx(ctx context.Context, tx *sqlx.Tx, id string, sources []model.BookingStatus, next model.BookingStatus, now time.Time) (bool, error) {
	var column string
	switch next {
	case model.BookingConfirmed:
		column = "confirmed_at"
	case model.BookingCancelled:
		column = "cancelled_at"
	case model.BookingRefunded:
		column = "refunded_at"
	case model.BookingPending:
		return false, fmt.Errorf("bookings cannot move back to %s", next)
	default:
		return false, fmt.Errorf("unknown booking status %q", next)
	}

	if len(sources) == 0 {
		return false, nil
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}
	query, args, err := sqlx.In(
		`UPDATE bookings SET status = ?, `+column+` = ? WHERE id = ? AND status IN (?)`,
		string(next), now.UTC(), id, from,
	)
	if err != nil {
		return false, err
	}
	affected, err := execAffected(ctx, tx, query, args...)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
