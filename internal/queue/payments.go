package queue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/ferry-reservation/internal/model"
)

// PaymentApplier applies a payment provider event to the booking it names.
type PaymentApplier interface {
	ApplyPaymentEvent(ctx context.Context, ev model.IncomingPaymentEvent) (model.PaymentResult, error)
}

// PaymentEventHandler feeds Stripe-shaped events from payments.events into
// the booking state machine.  Undecodable or invalid messages are dropped;
// storage failures are requeued since applying an event is idempotent.
func PaymentEventHandler(applier PaymentApplier, log *slog.Logger) HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, body []byte) Outcome {
		ev, err := model.ParseProviderEvent(body)
		if err != nil {
			log.Warn("payments: malformed event", "err", err)
			return Reject
		}
		if _, err := applier.ApplyPaymentEvent(ctx, ev); err != nil {
			var v *model.ValidationError
			if errors.As(err, &v) {
				log.Warn("payments: invalid event", "event_id", ev.EventID, "err", err)
				return Reject
			}
			log.Error("payments: apply failed", "event_id", ev.EventID, "err", err)
			return Requeue
		}
		return Ack
	}
}
