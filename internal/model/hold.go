package model

import "time"

// DefaultHoldTTL is how long a hold stays consumable when the caller does
// not ask for anything else.
const DefaultHoldTTL = 10 * time.Minute

// Hold represents a time-boxed, provisional claim on seats of a sailing
// during the booking workflow.  A hold is consumed at most once; an
// expired hold that was never consumed is deleted by the sweeper.
//
// Fields:
//
//	ID        – primary key identifier.
//	SailingID – sailing the seats are held on.
//	SeatCount – number of seats requested, always > 0.
//	ExpiresAt – after this instant the hold can no longer be consumed.
//	Consumed  – flips false→true exactly once.
//	CreatedAt – creation timestamp.
type Hold struct {
	ID        string    `db:"id"`
	SailingID string    `db:"sailing_id"`
	SeatCount int       `db:"seat_count"`
	ExpiresAt time.Time `db:"expires_at"`
	Consumed  bool      `db:"consumed"`
	CreatedAt time.Time `db:"created_at"`
}

// Consumable reports whether the hold could still be consumed at now.
// It screens a hold read in the same transaction; the conditional update in
// the store still decides.
func (h Hold) Consumable(now time.Time) bool {
	return !h.Consumed && h.ExpiresAt.After(now)
}
