package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/queue"
	"github.com/iliyamo/ferry-reservation/internal/repository"
)

// MaxReferenceAttempts bounds how many booking references are tried before
// CreateBooking gives up with ErrReferenceExhausted.
const MaxReferenceAttempts = 3

// DefaultTicketGrace is how long after departure a credential stays valid.
const DefaultTicketGrace = 6 * time.Hour

// TicketIssuer signs ticket credentials.
type TicketIssuer interface {
	Issue(ticketID, bookingID, passenger string, ttl time.Duration) (string, error)
}

// BookingOptions are the policy knobs of the booking state machine.
type BookingOptions struct {
	HoldTTL time.Duration
	// TicketTTL is the minimum lifetime of a ticket credential.
	TicketTTL time.Duration
	// TicketGrace keeps credentials valid this long after departure, so a
	// booking made days ahead still scans at boarding.
	TicketGrace     time.Duration
	ReferencePrefix string
	// RequirePayment creates bookings as pending; a payment event confirms
	// them.  Seats are allocated at creation either way.
	RequirePayment bool
}

// BookingService orchestrates hold acquisition, ticket issuance and the
// booking lifecycle.
type BookingService struct {
	db        *sqlx.DB
	ledger    *CapacityLedger
	sailings  *repository.SailingRepo
	bookings  *repository.BookingRepo
	tickets   *repository.TicketRepo
	events    *repository.PaymentEventRepo
	issuer    TicketIssuer
	publisher EventPublisher
	clock     clock.Clock
	log       *slog.Logger
	opts      BookingOptions
	newRef    func(prefix string) (string, error)
}

// BookingDeps groups the collaborators of a BookingService.
type BookingDeps struct {
	DB        *sqlx.DB
	Ledger    *CapacityLedger
	Sailings  *repository.SailingRepo
	Bookings  *repository.BookingRepo
	Tickets   *repository.TicketRepo
	Events    *repository.PaymentEventRepo
	Issuer    TicketIssuer
	Publisher EventPublisher
	Clock     clock.Clock
	Log       *slog.Logger
	// NewReference generates booking references; nil uses
	// model.NewReference.
	NewReference func(prefix string) (string, error)
}

// NewBookingService builds the service.  Missing optional collaborators
// fall back to the system clock, the default logger and a no-op publisher.
func NewBookingService(d BookingDeps, opts BookingOptions) *BookingService {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if opts.HoldTTL == 0 {
		opts.HoldTTL = model.DefaultHoldTTL
	}
	if opts.TicketTTL == 0 {
		opts.TicketTTL = 24 * time.Hour
	}
	if opts.TicketGrace == 0 {
		opts.TicketGrace = DefaultTicketGrace
	}
	if d.NewReference == nil {
		d.NewReference = model.NewReference
	}
	if opts.ReferencePrefix == "" {
		opts.ReferencePrefix = model.DefaultReferencePrefix
	}
	return &BookingService{
		db:        d.DB,
		ledger:    d.Ledger,
		sailings:  d.Sailings,
		bookings:  d.Bookings,
		tickets:   d.Tickets,
		events:    d.Events,
		issuer:    d.Issuer,
		publisher: d.Publisher,
		clock:     d.Clock,
		log:       d.Log,
		opts:      opts,
		newRef:    d.NewReference,
	}
}

// CreateBooking allocates seats for every passenger and issues one signed
// ticket each.  Hold, booking and tickets commit together or not at all.
func (s *BookingService) CreateBooking(ctx context.Context, req model.NewBookingRequest) (*model.BookingDetail, error) {
	sailing, err := s.sailings.GetByID(ctx, req.SailingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("sailing %s: %w", req.SailingID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load sailing: %w", err)
	}

	for attempt := 1; attempt <= MaxReferenceAttempts; attempt++ {
		detail, err := s.createOnce(ctx, sailing, req)
		if errors.Is(err, repository.ErrDuplicateReference) {
			s.log.Warn("booking reference collision", "sailing_id", sailing.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("booking created", "booking_id", detail.ID, "reference", detail.Reference,
			"sailing_id", sailing.ID, "pax", detail.PaxCount, "status", detail.Status)
		if detail.Status == model.BookingConfirmed {
			s.publishConfirmed(ctx, sailing, detail)
		}
		return detail, nil
	}
	return nil, ErrReferenceExhausted
}

func (s *BookingService) createOnce(ctx context.Context, sailing *model.Sailing, req model.NewBookingRequest) (*model.BookingDetail, error) {
	ref, err := s.newRef(s.opts.ReferencePrefix)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	ttl := s.ticketTTL(sailing, now)
	b := model.Booking{
		ID:        uuid.NewString(),
		SailingID: sailing.ID,
		Reference: ref,
		Status:    model.BookingConfirmed,
		PaxCount:  len(req.Passengers),
		CreatedAt: now,
	}
	if s.opts.RequirePayment {
		b.Status = model.BookingPending
	} else {
		b.ConfirmedAt = &now
	}
	if req.Vehicle != nil {
		b.VehicleType = optional(req.Vehicle.Type)
		b.VehiclePlate = optional(req.Vehicle.LicensePlate)
	}
	b.Notes = optional(req.Notes)

	detail := &model.BookingDetail{Booking: b, Tickets: make([]model.Ticket, 0, len(req.Passengers))}
	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		hold, err := s.ledger.CreateHoldTx(ctx, tx, sailing.ID, len(req.Passengers), s.opts.HoldTTL)
		if err != nil {
			return err
		}
		if err := s.ledger.ConsumeHoldTx(ctx, tx, hold.ID); err != nil {
			if errors.Is(err, ErrHoldUnavailable) {
				return fmt.Errorf("sailing %s: %w", sailing.ID, ErrCapacityExhausted)
			}
			return err
		}
		if err := s.bookings.CreateTx(ctx, tx, &b); err != nil {
			return err
		}
		for _, p := range req.Passengers {
			t := model.Ticket{
				ID:            uuid.NewString(),
				BookingID:     b.ID,
				PassengerName: p.Name,
				Email:         optional(p.Email),
				CreatedAt:     now,
			}
			t.Token, err = s.issuer.Issue(t.ID, b.ID, p.Name, ttl)
			if err != nil {
				return fmt.Errorf("issue ticket: %w", err)
			}
			if err := s.tickets.CreateTx(ctx, tx, &t); err != nil {
				return fmt.Errorf("create ticket: %w", err)
			}
			detail.Tickets = append(detail.Tickets, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ticketTTL is the credential lifetime for a booking made at now: at least
// TicketTTL, and never ending before departure plus TicketGrace.
func (s *BookingService) ticketTTL(sailing *model.Sailing, now time.Time) time.Duration {
	ttl := s.opts.TicketTTL
	if untilGrace := sailing.DepartureTime.Add(s.opts.TicketGrace).Sub(now); untilGrace > ttl {
		ttl = untilGrace
	}
	return ttl
}

// GetBooking returns a booking with its tickets.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*model.BookingDetail, error) {
	b, err := s.bookings.GetByID(ctx, id)
	return s.withTickets(ctx, b, err)
}

// GetBookingByReference looks a booking up by its reference code.
func (s *BookingService) GetBookingByReference(ctx context.Context, ref string) (*model.BookingDetail, error) {
	b, err := s.bookings.GetByReference(ctx, ref)
	return s.withTickets(ctx, b, err)
}

func (s *BookingService) withTickets(ctx context.Context, b *model.Booking, err error) (*model.BookingDetail, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	tickets, err := s.tickets.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return &model.BookingDetail{Booking: *b, Tickets: tickets}, nil
}

// GetTicket returns a single ticket including its signed token.
func (s *BookingService) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	return t, nil
}

// ConfirmBooking moves a pending booking to confirmed.  Confirming an
// already confirmed booking is a no-op.
func (s *BookingService) ConfirmBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, changed, err := s.transition(ctx, id, model.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishConfirmedByID(ctx, b)
	}
	return b, nil
}

// CancelBooking cancels a pending or confirmed booking and gives its seats
// back to the sailing.  Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, _, err := s.transition(ctx, id, model.BookingCancelled)
	return b, err
}

// transition applies a local status change.  It reports whether the
// status actually changed; reaching a status the booking already has is a
// no-op, any other refused move is ErrInvalidTransition.
func (s *BookingService) transition(ctx context.Context, id string, next model.BookingStatus) (*model.Booking, bool, error) {
	var changed bool
	var out *model.Booking
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.bookings.GetByIDTx(ctx, tx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if b.Status == next {
			out = b
			return nil
		}
		if !b.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", b.Status, next, ErrInvalidTransition)
		}
		changed, err = s.applyTx(ctx, tx, b, model.SourcesFor(next), next)
		if err != nil {
			return err
		}
		if !changed {
			// status moved under us between the read and the guarded update
			return fmt.Errorf("%s -> %s: %w", b.Status, next, ErrInvalidTransition)
		}
		out, err = s.bookings.GetByIDTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.log.Info("booking status changed", "booking_id", id, "status", next)
	}
	return out, changed, nil
}

// applyTx runs the guarded status update and, when the booking leaves a
// seat holding status, releases its seats in the same transaction.
func (s *BookingService) applyTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking, from []model.BookingStatus, next model.BookingStatus) (bool, error) {
	ok, err := s.bookings.TransitionFromTx(ctx, tx, b.ID, from, next, s.clock.Now())
	if err != nil || !ok {
		return false, err
	}
	if !next.HoldsSeats() {
		if err := s.sailings.ReleaseTx(ctx, tx, b.SailingID, b.PaxCount, s.clock.Now()); err != nil {
			return false, fmt.Errorf("release seats: %w", err)
		}
	}
	return true, nil
}

var errDuplicateEvent = errors.New("duplicate event")

// ApplyPaymentEvent records a payment provider event exactly once and
// applies its status change.  Redelivered events, unknown event types,
// events for unknown bookings and changes not allowed from the booking's
// current status all succeed without further effect.
func (s *BookingService) ApplyPaymentEvent(ctx context.Context, in model.IncomingPaymentEvent) (model.PaymentResult, error) {
	if in.EventID == "" {
		v := &model.ValidationError{}
		v.Add("event_id", "is required")
		return model.PaymentResult{}, v
	}
	kind := model.ParsePaymentEventType(in.EventType)
	target, actionable := kind.TargetStatus()

	var res model.PaymentResult
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var booking *model.Booking
		if in.BookingID != "" {
			b, err := s.bookings.GetByIDTx(ctx, tx, in.BookingID)
			switch {
			case err == nil:
				booking = b
			case errors.Is(err, repository.ErrNotFound):
				s.log.Warn("payment event for unknown booking", "event_id", in.EventID, "booking_id", in.BookingID)
			default:
				return err
			}
		}

		ev := &model.PaymentEvent{EventID: in.EventID, EventType: in.EventType, ProcessedAt: s.clock.Now()}
		if booking != nil {
			ev.BookingID = &booking.ID
		}
		if err := s.events.InsertTx(ctx, tx, ev); err != nil {
			if errors.Is(err, repository.ErrDuplicateEvent) {
				return errDuplicateEvent
			}
			return fmt.Errorf("record payment event: %w", err)
		}
		if booking == nil {
			return nil
		}
		res.BookingID = booking.ID
		res.Status = booking.Status
		if !actionable {
			return nil
		}
		changed, err := s.applyTx(ctx, tx, booking, kind.Sources(), target)
		if err != nil {
			return err
		}
		if changed {
			res.Transitioned = true
			res.Status = target
		}
		return nil
	})
	if errors.Is(err, errDuplicateEvent) {
		s.log.Info("duplicate payment event ignored", "event_id", in.EventID)
		return model.PaymentResult{Duplicate: true, BookingID: in.BookingID}, nil
	}
	if err != nil {
		return model.PaymentResult{}, err
	}

	s.log.Info("payment event applied", "event_id", in.EventID, "event_type", kind,
		"booking_id", res.BookingID, "transitioned", res.Transitioned)
	if res.Transitioned && res.Status == model.BookingConfirmed {
		if b, err := s.bookings.GetByID(ctx, res.BookingID); err == nil {
			s.publishConfirmedByID(ctx, b)
		}
	}
	return res, nil
}

func (s *BookingService) publishConfirmedByID(ctx context.Context, b *model.Booking) {
	sailing, err := s.sailings.GetByID(ctx, b.SailingID)
	if err != nil {
		s.log.Warn("skip booking.confirmed event", "booking_id", b.ID, "err", err)
		return
	}
	tickets, err := s.tickets.ListByBooking(ctx, b.ID)
	if err != nil {
		s.log.Warn("skip booking.confirmed event", "booking_id", b.ID, "err", err)
		return
	}
	s.publishConfirmed(ctx, sailing, &model.BookingDetail{Booking: *b, Tickets: tickets})
}

func (s *BookingService) publishConfirmed(ctx context.Context, sailing *model.Sailing, d *model.BookingDetail) {
	names := make([]string, 0, len(d.Tickets))
	for _, t := range d.Tickets {
		names = append(names, t.PassengerName)
	}
	confirmedAt := s.clock.Now()
	if d.ConfirmedAt != nil {
		confirmedAt = *d.ConfirmedAt
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:     d.ID,
		Reference:     d.Reference,
		SailingID:     sailing.ID,
		OriginPort:    sailing.OriginPort,
		DestPort:      sailing.DestPort,
		DepartureTime: sailing.DepartureTime.UTC().Format(time.RFC3339),
		PaxCount:      d.PaxCount,
		Passengers:    names,
		ConfirmedAt:   confirmedAt.UTC().Format(time.RFC3339),
	}
	if d.VehiclePlate != nil {
		ev.VehiclePlate = *d.VehiclePlate
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.Warn("publish booking.confirmed failed", "booking_id", d.ID, "err", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
