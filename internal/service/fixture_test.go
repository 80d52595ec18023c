package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/credential"
	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/queue"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	db        *sqlx.DB
	clock     *clock.Manual
	creds     *credential.Service
	ledger    *CapacityLedger
	bookings  *BookingService
	schedule  *ScheduleService
	gate      *Gate
	holds     *repository.HoldRepo
	events    *repository.PaymentEventRepo
	publisher *recordingPublisher
}

// newFixture wires every service over a fresh store.  mods may replace
// booking collaborators before the service is built.
func newFixture(t *testing.T, opts BookingOptions, mods ...func(*BookingDeps)) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewManual(testutil.Epoch)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	creds, err := credential.NewService(key, nil, clk)
	if err != nil {
		t.Fatal(err)
	}

	holds := repository.NewHoldRepo(db)
	sailings := repository.NewSailingRepo(db)
	tickets := repository.NewTicketRepo(db)
	events := repository.NewPaymentEventRepo(db)
	ledger := NewCapacityLedger(db, holds, sailings, clk, log)
	pub := &recordingPublisher{}

	deps := BookingDeps{
		DB:        db,
		Ledger:    ledger,
		Sailings:  sailings,
		Bookings:  repository.NewBookingRepo(db),
		Tickets:   tickets,
		Events:    events,
		Issuer:    creds,
		Publisher: pub,
		Clock:     clk,
		Log:       log,
	}
	for _, mod := range mods {
		mod(&deps)
	}

	return &fixture{
		db:        db,
		clock:     clk,
		creds:     creds,
		ledger:    ledger,
		bookings:  NewBookingService(deps, opts),
		schedule:  NewScheduleService(sailings, clk),
		gate:      NewGate(creds, tickets, clk, log),
		holds:     holds,
		events:    events,
		publisher: pub,
	}
}

func bookingRequest(t *testing.T, sailingID string, names ...string) model.NewBookingRequest {
	t.Helper()
	pax := make([]model.Passenger, len(names))
	for i, n := range names {
		pax[i] = model.Passenger{Name: n}
	}
	req, err := model.NewBookingRequestFrom(sailingID, pax, nil, "")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}
