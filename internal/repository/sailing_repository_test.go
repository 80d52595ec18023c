package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/testutil"
)

func TestSailingAllocateRelease(t *testing.T) {
	db := testutil.OpenDB(t)
	sailing := testutil.SeedSailing(t, db, 3)
	repo := NewSailingRepo(db)
	ctx := context.Background()

	allocate := func(n int) bool {
		t.Helper()
		var ok bool
		if err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
			var err error
			ok, err = repo.AllocateTx(ctx, tx, sailing.ID, n, testutil.Epoch)
			return err
		}); err != nil {
			t.Fatal(err)
		}
		return ok
	}

	if !allocate(2) {
		t.Fatal("2 of 3 seats should fit")
	}
	if allocate(2) {
		t.Fatal("2 more seats must not fit")
	}
	if !allocate(1) {
		t.Fatal("last seat should fit")
	}
	if got := testutil.SeatsAllocated(t, db, sailing.ID); got != 3 {
		t.Fatalf("seats_allocated = %d, want 3", got)
	}

	if err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		return repo.ReleaseTx(ctx, tx, sailing.ID, 2, testutil.Epoch)
	}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByID(ctx, sailing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SeatsAllocated != 1 || got.Available() != 2 {
		t.Fatalf("unexpected counters: %+v", got)
	}
}

func TestSailingCancelledRefusesAllocation(t *testing.T) {
	db := testutil.OpenDB(t)
	sailing := testutil.SeedSailing(t, db, 3)
	repo := NewSailingRepo(db)
	ctx := context.Background()

	reason := "storm"
	if err := repo.UpdateStatus(ctx, sailing.ID, model.SailingCancelled, &reason, testutil.Epoch); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, "missing", model.SailingDelayed, nil, testutil.Epoch); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var ok bool
	if err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		ok, err = repo.AllocateTx(ctx, tx, sailing.ID, 1, testutil.Epoch)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("cancelled sailing must refuse allocation")
	}
	got, _ := repo.GetByID(ctx, sailing.ID)
	if got.Status != model.SailingCancelled || got.StatusReason == nil || *got.StatusReason != "storm" {
		t.Fatalf("status not stored: %+v", got)
	}
}

func TestSailingSearch(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSailingRepo(db)
	ctx := context.Background()

	day := testutil.Epoch.Add(24 * time.Hour).Truncate(24 * time.Hour)
	mk := func(id, origin string, dep time.Time, capacity int) {
		if err := repo.Create(ctx, &model.Sailing{
			ID: id, OriginPort: origin, DestPort: "Calais", DepartureTime: dep, Capacity: capacity,
			CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch,
		}); err != nil {
			t.Fatal(err)
		}
	}
	mk("late", "Dover", day.Add(18*time.Hour), 50)
	mk("early", "Dover", day.Add(6*time.Hour), 50)
	mk("small", "Dover", day.Add(9*time.Hour), 2)
	mk("nextday", "Dover", day.Add(30*time.Hour), 50)
	mk("other", "Ramsgate", day.Add(7*time.Hour), 50)

	rows, err := repo.Search(ctx, SailingSearchQuery{
		Origin: "dover", Destination: "CALAIS", From: day, To: day.Add(24 * time.Hour), MinSeats: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "early" || rows[1].ID != "late" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Available != 50 {
		t.Fatalf("available = %d", rows[0].Available)
	}
}
