// Package repository holds the SQL data access for sailings, holds,
// bookings, tickets and payment events.  The sentinel values below allow
// higher layers such as services and handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a unique constraint on a non-key column.
var ErrConflict = errors.New("conflict")

// ErrDuplicateReference is returned when a booking insert collides with an
// existing booking reference.
var ErrDuplicateReference = errors.New("duplicate booking reference")

// ErrDuplicateEvent is returned when a payment event id was already
// recorded.
var ErrDuplicateEvent = errors.New("duplicate payment event")

// isUniqueViolation reports whether err is a unique or primary key
// violation from any of the supported drivers.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
