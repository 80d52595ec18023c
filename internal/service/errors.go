// Package service holds the reservation core: the capacity ledger, the
// booking state machine and the redemption gate.  Services own transaction
// boundaries; repositories only run statements.
package service

import "errors"

var (
	// ErrNotFound means the referenced sailing, booking or ticket is absent.
	ErrNotFound = errors.New("not found")
	// ErrHoldUnavailable means a hold could not be consumed: it was already
	// consumed, it expired, or its seats no longer fit on the sailing.
	ErrHoldUnavailable = errors.New("hold unavailable")
	// ErrCapacityExhausted is returned by CreateBooking when the seats could
	// not be allocated.  Callers may retry the whole booking.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrReferenceExhausted means every generated booking reference collided.
	ErrReferenceExhausted = errors.New("could not generate a unique booking reference")
	// ErrInvalidTransition is returned by local status changes that are not
	// allowed from the booking's current status.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
