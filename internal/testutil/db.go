// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ferry-reservation/internal/database"
	"github.com/iliyamo/ferry-reservation/internal/model"
)

// Epoch is the instant test clocks start from.
var Epoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// OpenDB opens a migrated SQLite database in a temporary directory through
// the same Open and Migrate path production uses.  It is closed when the
// test finishes.
func OpenDB(t testing.TB) *sqlx.DB {
	t.Helper()
	return OpenDBAt(t, filepath.Join(t.TempDir(), "ferry.db"))
}

// OpenDBAt opens and migrates the database file at path.  Calling it twice
// with the same path yields two handles, each with its own connection, on
// one store.
func OpenDBAt(t testing.TB, path string) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		Path:   path,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// SeedSailing inserts a sailing with the given capacity departing one day
// after Epoch and returns it.
func SeedSailing(t testing.TB, db *sqlx.DB, capacity int) *model.Sailing {
	t.Helper()
	arrive := Epoch.Add(26 * time.Hour)
	s := &model.Sailing{
		ID:              uuid.NewString(),
		OriginPort:      "Dover",
		DestPort:        "Calais",
		DepartureTime:   Epoch.Add(24 * time.Hour),
		ArrivalTime:     &arrive,
		Capacity:        capacity,
		VehicleCapacity: 10,
		Status:          model.SailingOnTime,
		CreatedAt:       Epoch,
		UpdatedAt:       Epoch,
	}
	const q = `INSERT INTO sailings (id, origin_port, dest_port, departure_time, arrival_time, capacity,
		seats_allocated, vehicle_capacity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`
	if _, err := db.Exec(db.Rebind(q), s.ID, s.OriginPort, s.DestPort, s.DepartureTime, s.ArrivalTime,
		s.Capacity, s.VehicleCapacity, string(s.Status), s.CreatedAt, s.UpdatedAt); err != nil {
		t.Fatalf("seed sailing: %v", err)
	}
	return s
}

// SeatsAllocated reads the allocation counter of a sailing.
func SeatsAllocated(t testing.TB, db *sqlx.DB, sailingID string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, db.Rebind(`SELECT seats_allocated FROM sailings WHERE id = ?`), sailingID); err != nil {
		t.Fatalf("read seats_allocated: %v", err)
	}
	return n
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
