package model

import (
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

const (
	MinPassengers    = 1
	MaxPassengers    = 20
	MinNameLength    = 2
	MaxNameLength    = 100
	MaxNotesLength   = 500
	MaxVehicleLength = 50
)

// CanTransitionTo reports whether moving from s to next is one of the
// allowed lifecycle edges.  Cancelled and refunded are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCancelled || next == BookingRefunded
	case BookingCancelled, BookingRefunded:
		return false
	}
	return false
}

// SourcesFor lists every status from which next can be reached.  The
// store uses it as the guard of the conditional status update.
func SourcesFor(next BookingStatus) []BookingStatus {
	switch next {
	case BookingConfirmed:
		return []BookingStatus{BookingPending}
	case BookingCancelled:
		return []BookingStatus{BookingPending, BookingConfirmed}
	case BookingRefunded:
		return []BookingStatus{BookingConfirmed}
	case BookingPending:
		return nil
	}
	return nil
}

// HoldsSeats reports whether a booking in this status keeps its seats
// allocated on the sailing.
func (s BookingStatus) HoldsSeats() bool {
	switch s {
	case BookingPending, BookingConfirmed:
		return true
	case BookingCancelled, BookingRefunded:
		return false
	}
	return false
}

// Booking is a confirmed or pending purchase of seats on one sailing.
// Tickets are not embedded; they are loaded by booking id.
//
// Fields:
//
//	ID           – primary key identifier.
//	SailingID    – sailing the seats were allocated on.
//	Reference    – unique human-readable code, immutable.
//	Status       – pending, confirmed, cancelled or refunded.
//	PaxCount     – number of passengers, equal to the number of tickets.
//	VehicleType  – optional vehicle descriptor.
//	VehiclePlate – optional licence plate.
//	Notes        – free text from the customer.
//	CreatedAt    – creation timestamp.
//	ConfirmedAt  – set when the booking becomes confirmed.
//	CancelledAt  – set when the booking is cancelled.
//	RefundedAt   – set when the booking is refunded.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	SailingID    string        `db:"sailing_id" json:"sailing_id"`
	Reference    string        `db:"reference" json:"booking_reference"`
	Status       BookingStatus `db:"status" json:"status"`
	PaxCount     int           `db:"pax_count" json:"pax_count"`
	VehicleType  *string       `db:"vehicle_type" json:"vehicle_type,omitempty"`
	VehiclePlate *string       `db:"vehicle_plate" json:"vehicle_plate,omitempty"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	ConfirmedAt  *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RefundedAt   *time.Time    `db:"refunded_at" json:"refunded_at,omitempty"`
}

// Passenger is one traveller named on a booking request.
type Passenger struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Vehicle describes a vehicle travelling with the booking.
type Vehicle struct {
	Type         string `json:"type,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// NewBookingRequest is the validated input of CreateBooking.  Build it with
// NewBookingRequestFrom so that names are already normalized.
type NewBookingRequest struct {
	SailingID  string
	Passengers []Passenger
	Vehicle    *Vehicle
	Notes      string
}

// NewBookingRequestFrom validates raw booking input and returns a request
// with normalized passenger names.  Every problem found is reported at
// once through a *ValidationError.
func NewBookingRequestFrom(sailingID string, passengers []Passenger, vehicle *Vehicle, notes string) (NewBookingRequest, error) {
	var v ValidationError

	sailingID = strings.TrimSpace(sailingID)
	if sailingID == "" {
		v.Add("sailing_id", "is required")
	}

	n := len(passengers)
	if n < MinPassengers || n > MaxPassengers {
		v.Add("passengers", "must contain between 1 and 20 entries")
	}

	out := make([]Passenger, 0, n)
	seen := make(map[string]struct{}, n)
	for i, p := range passengers {
		field := "passengers[" + strconv.Itoa(i) + "]"
		name, ok := NormalizeName(p.Name)
		if !ok {
			v.Add(field+".name", "must be between 2 and 100 characters")
		} else if _, dup := seen[name]; dup {
			v.Add(field+".name", "duplicates another passenger on this booking")
		} else {
			seen[name] = struct{}{}
		}
		email := strings.TrimSpace(p.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				v.Add(field+".email", "is not a valid address")
			}
		}
		out = append(out, Passenger{Name: name, Email: email})
	}

	var veh *Vehicle
	if vehicle != nil {
		t := strings.TrimSpace(vehicle.Type)
		plate := strings.ToUpper(strings.TrimSpace(vehicle.LicensePlate))
		if utf8.RuneCountInString(t) > MaxVehicleLength {
			v.Add("vehicle.type", "is too long")
		}
		if utf8.RuneCountInString(plate) > MaxVehicleLength {
			v.Add("vehicle.license_plate", "is too long")
		}
		if t != "" || plate != "" {
			veh = &Vehicle{Type: t, LicensePlate: plate}
		}
	}

	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		v.Add("notes", "must be at most 500 characters")
	}

	if v.HasViolations() {
		return NewBookingRequest{}, &v
	}
	return NewBookingRequest{SailingID: sailingID, Passengers: out, Vehicle: veh, Notes: notes}, nil
}

// NormalizeName trims a passenger name, collapses inner whitespace and
// title-cases each word.  ok is false when the result is shorter than
// MinNameLength or longer than MaxNameLength.
func NormalizeName(raw string) (name string, ok bool) {
	name = strings.Join(strings.Fields(raw), " ")
	var b strings.Builder
	b.Grow(len(name))
	prevLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	name = b.String()
	n := utf8.RuneCountInString(name)
	return name, n >= MinNameLength && n <= MaxNameLength
}
