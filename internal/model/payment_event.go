package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PaymentEventType is the closed set of payment provider events the
// booking state machine understands.
type PaymentEventType string

const (
	PaymentIntentSucceeded   PaymentEventType = "payment_intent.succeeded"
	CheckoutSessionCompleted PaymentEventType = "checkout.session.completed"
	ChargeRefunded           PaymentEventType = "charge.refunded"
	PaymentIntentCanceled    PaymentEventType = "payment_intent.canceled"
	PaymentIntentFailed      PaymentEventType = "payment_intent.payment_failed"
	PaymentEventUnknown      PaymentEventType = "unknown"
)

// ParsePaymentEventType maps a provider event type onto the closed set.
// Anything unrecognised becomes PaymentEventUnknown.
func ParsePaymentEventType(raw string) PaymentEventType {
	switch t := PaymentEventType(raw); t {
	case PaymentIntentSucceeded, CheckoutSessionCompleted, ChargeRefunded,
		PaymentIntentCanceled, PaymentIntentFailed:
		return t
	}
	return PaymentEventUnknown
}

// TargetStatus returns the booking status the event drives towards.  ok
// is false for events that are recorded but otherwise inert.
func (t PaymentEventType) TargetStatus() (status BookingStatus, ok bool) {
	switch t {
	case PaymentIntentSucceeded, CheckoutSessionCompleted:
		return BookingConfirmed, true
	case ChargeRefunded:
		return BookingRefunded, true
	case PaymentIntentCanceled, PaymentIntentFailed:
		return BookingCancelled, true
	case PaymentEventUnknown:
		return "", false
	}
	return "", false
}

// Sources lists the booking statuses the event may move a booking out of.
// A failed or cancelled payment only ends a booking still awaiting
// payment; it never cancels one that is already confirmed.
func (t PaymentEventType) Sources() []BookingStatus {
	switch t {
	case PaymentIntentCanceled, PaymentIntentFailed:
		return []BookingStatus{BookingPending}
	case PaymentIntentSucceeded, CheckoutSessionCompleted, ChargeRefunded:
		target, _ := t.TargetStatus()
		return SourcesFor(target)
	case PaymentEventUnknown:
		return nil
	}
	return nil
}

// PaymentEvent is a processed provider event.  EventID is the idempotency
// key: the store refuses a second row with the same id.
type PaymentEvent struct {
	EventID     string    `db:"event_id" json:"event_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	BookingID   *string   `db:"booking_id" json:"booking_id,omitempty"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// IncomingPaymentEvent is the provider-neutral shape of a payment
// notification, whichever transport delivered it.
type IncomingPaymentEvent struct {
	EventID   string
	EventType string
	BookingID string
}

// PaymentResult reports what applying an event did.  Duplicate events
// and events that find the booking in an incompatible state are still
// successes.
type PaymentResult struct {
	Duplicate    bool          `json:"duplicate"`
	Transitioned bool          `json:"transitioned"`
	BookingID    string        `json:"booking_id,omitempty"`
	Status       BookingStatus `json:"status,omitempty"`
}

// providerEvent mirrors the parts of a Stripe event the core reads.
type providerEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseProviderEvent decodes a Stripe-shaped event body.  The booking id is
// read from data.object.metadata.booking_id and may be empty.
func ParseProviderEvent(body []byte) (IncomingPaymentEvent, error) {
	var pe providerEvent
	if err := json.Unmarshal(body, &pe); err != nil {
		return IncomingPaymentEvent{}, fmt.Errorf("decode payment event: %w", err)
	}
	if pe.ID == "" {
		return IncomingPaymentEvent{}, errors.New("payment event has no id")
	}
	return IncomingPaymentEvent{
		EventID:   pe.ID,
		EventType: pe.Type,
		BookingID: pe.Data.Object.Metadata["booking_id"],
	}, nil
}
