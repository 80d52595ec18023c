package service

import (
	"context"

	"github.com/iliyamo/ferry-reservation/internal/queue"
)

// EventPublisher delivers domain events after their transaction commits.
// Delivery is best effort; a failure never undoes the booking.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// NopPublisher discards every event.  It is used when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, queue.BookingConfirmedEvent) error {
	return nil
}
