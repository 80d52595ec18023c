package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/testutil"
)

func bookOne(t *testing.T, f *fixture, names ...string) *model.BookingDetail {
	t.Helper()
	sailing := testutil.SeedSailing(t, f.db, 10)
	detail, err := f.bookings.CreateBooking(context.Background(), bookingRequest(t, sailing.ID, names...))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return detail
}

func TestRedeemExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	detail := bookOne(t, f, "Ada")
	token := detail.Tickets[0].Token

	const n = 20
	decisions := make([]Decision, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.gate.Redeem(context.Background(), token)
			if err != nil {
				t.Error(err)
			}
			decisions[i] = d
		}(i)
	}
	wg.Wait()

	valid, used := 0, 0
	for _, d := range decisions {
		switch {
		case d.Valid:
			valid++
		case d.Reason == ReasonAlreadyUsed:
			used++
			if d.TicketID != detail.Tickets[0].ID || d.BookingID != detail.ID {
				t.Fatalf("already used decision lacks identifiers: %+v", d)
			}
		default:
			t.Fatalf("unexpected decision: %+v", d)
		}
	}
	if valid != 1 || used != n-1 {
		t.Fatalf("valid=%d already_used=%d", valid, used)
	}
}

func TestRedeemDecisions(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	detail := bookOne(t, f, "Ada", "Grace")
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		d, err := f.gate.Redeem(ctx, detail.Tickets[0].Token)
		if err != nil || !d.Valid || d.PassengerName != "Ada" || d.BookingID != detail.ID {
			t.Fatalf("unexpected decision: %+v, %v", d, err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		tok := detail.Tickets[1].Token
		i := strings.LastIndex(tok, ".") + 5
		c := byte('A')
		if tok[i] == 'A' {
			c = 'B'
		}
		forged := tok[:i] + string(c) + tok[i+1:]
		d, err := f.gate.Redeem(ctx, forged)
		if err != nil || d.Valid || d.Reason != ReasonInvalidCredential {
			t.Fatalf("unexpected decision: %+v, %v", d, err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		d, _ := f.gate.Redeem(ctx, "garbage")
		if d.Valid || d.Reason != ReasonMalformedCredential {
			t.Fatalf("unexpected decision: %+v", d)
		}
	})

	t.Run("signed for unknown ticket", func(t *testing.T) {
		tok, err := f.creds.Issue("other-ticket", detail.ID, "Grace", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		d, _ := f.gate.Redeem(ctx, tok)
		if d.Valid || d.Reason != ReasonNotFound {
			t.Fatalf("unexpected decision: %+v", d)
		}
		tok, _ = f.creds.Issue("x", detail.ID, "Nobody", time.Hour)
		if d, _ := f.gate.Redeem(ctx, tok); d.Reason != ReasonNotFound {
			t.Fatalf("unexpected decision: %+v", d)
		}
	})

	t.Run("expired", func(t *testing.T) {
		// departure is Epoch+24h, plus the default grace
		f.clock.Advance(24*time.Hour + DefaultTicketGrace + time.Minute)
		d, _ := f.gate.Redeem(ctx, detail.Tickets[1].Token)
		if d.Valid || d.Reason != ReasonExpiredCredential {
			t.Fatalf("unexpected decision: %+v", d)
		}
	})
}

func TestRedeemCancelledBooking(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	detail := bookOne(t, f, "Ada")
	if _, err := f.bookings.CancelBooking(context.Background(), detail.ID); err != nil {
		t.Fatal(err)
	}
	d, err := f.gate.Redeem(context.Background(), detail.Tickets[0].Token)
	if err != nil || d.Valid || d.Reason != ReasonBookingNotActive {
		t.Fatalf("unexpected decision: %+v, %v", d, err)
	}
}

func TestCredentialValidUntilDepartureGrace(t *testing.T) {
	f := newFixture(t, BookingOptions{TicketTTL: 24 * time.Hour, TicketGrace: 2 * time.Hour})
	ctx := context.Background()
	sailing := &model.Sailing{
		ID:            uuid.NewString(),
		OriginPort:    "Dover",
		DestPort:      "Calais",
		DepartureTime: testutil.Epoch.Add(72 * time.Hour),
		Capacity:      10,
		CreatedAt:     testutil.Epoch,
		UpdatedAt:     testutil.Epoch,
	}
	if err := repository.NewSailingRepo(f.db).Create(ctx, sailing); err != nil {
		t.Fatal(err)
	}
	detail, err := f.bookings.CreateBooking(ctx, bookingRequest(t, sailing.ID, "Ada", "Grace"))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	claims, err := f.creds.Verify(detail.Tickets[0].Token)
	if err != nil {
		t.Fatal(err)
	}
	if want := sailing.DepartureTime.Add(2 * time.Hour); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", claims.ExpiresAt, want)
	}

	// two days after booking, a day before departure
	f.clock.Advance(48 * time.Hour)
	d, err := f.gate.Redeem(ctx, detail.Tickets[0].Token)
	if err != nil || !d.Valid {
		t.Fatalf("ticket should still scan before departure: %+v, %v", d, err)
	}

	f.clock.Advance(24*time.Hour + 2*time.Hour + time.Second)
	d, _ = f.gate.Redeem(ctx, detail.Tickets[1].Token)
	if d.Valid || d.Reason != ReasonExpiredCredential {
		t.Fatalf("unexpected decision after grace: %+v", d)
	}
}

func TestCredentialTTLFloorForImminentSailing(t *testing.T) {
	f := newFixture(t, BookingOptions{TicketTTL: 24 * time.Hour, TicketGrace: time.Hour})
	detail := bookOne(t, f, "Ada")

	claims, err := f.creds.Verify(detail.Tickets[0].Token)
	if err != nil {
		t.Fatal(err)
	}
	if want := testutil.Epoch.Add(25 * time.Hour); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", claims.ExpiresAt, want)
	}

	f.clock.Advance(24 * time.Hour)
	d, _ := f.gate.Redeem(context.Background(), detail.Tickets[0].Token)
	if !d.Valid {
		t.Fatalf("unexpected decision: %+v", d)
	}
}
