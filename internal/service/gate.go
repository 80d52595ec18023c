package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/credential"
	"github.com/iliyamo/ferry-reservation/internal/repository"
)

// Redemption failure reasons reported in a Decision.
const (
	ReasonInvalidCredential   = "invalid credential"
	ReasonExpiredCredential   = "expired credential"
	ReasonMalformedCredential = "malformed credential"
	ReasonNotFound            = "not found"
	ReasonAlreadyUsed         = "already used"
	ReasonBookingNotActive    = "booking not active"
)

// TicketVerifier checks a presented credential.
type TicketVerifier interface {
	Verify(token string) (credential.Claims, error)
}

// Decision is the gate's answer for one scan.
type Decision struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	TicketID      string `json:"ticket_id,omitempty"`
	BookingID     string `json:"booking_id,omitempty"`
	PassengerName string `json:"passenger_name,omitempty"`
}

// Gate redeems ticket credentials at boarding.
type Gate struct {
	verifier TicketVerifier
	tickets  *repository.TicketRepo
	clock    clock.Clock
	log      *slog.Logger
}

func NewGate(verifier TicketVerifier, tickets *repository.TicketRepo, clk clock.Clock, log *slog.Logger) *Gate {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{verifier: verifier, tickets: tickets, clock: clk, log: log}
}

// Redeem validates token and marks its ticket used.  Credential problems,
// unknown tickets and repeated scans are reported in the Decision; only
// storage failures are returned as errors.
func (g *Gate) Redeem(ctx context.Context, token string) (Decision, error) {
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return Decision{Valid: false, Reason: credentialReason(err)}, nil
	}

	t, err := g.tickets.GetByPassenger(ctx, claims.BookingID, claims.Passenger)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && t.ID != claims.TicketID) {
		return Decision{Valid: false, Reason: ReasonNotFound, BookingID: claims.BookingID}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load ticket: %w", err)
	}

	d := Decision{TicketID: t.ID, BookingID: t.BookingID, PassengerName: t.PassengerName}
	ok, err := g.tickets.MarkUsed(ctx, t.ID, g.clock.Now())
	if err != nil {
		return Decision{}, fmt.Errorf("mark ticket used: %w", err)
	}
	if ok {
		d.Valid = true
		g.log.Info("ticket redeemed", "ticket_id", t.ID, "booking_id", t.BookingID)
		return d, nil
	}

	current, err := g.tickets.GetByID(ctx, t.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("reload ticket: %w", err)
	}
	if current.Used {
		d.Reason = ReasonAlreadyUsed
	} else {
		d.Reason = ReasonBookingNotActive
	}
	g.log.Info("ticket refused", "ticket_id", t.ID, "booking_id", t.BookingID, "reason", d.Reason)
	return d, nil
}

func credentialReason(err error) string {
	switch {
	case errors.Is(err, credential.ErrExpiredCredential):
		return ReasonExpiredCredential
	case errors.Is(err, credential.ErrMalformedCredential):
		return ReasonMalformedCredential
	default:
		return ReasonInvalidCredential
	}
}
