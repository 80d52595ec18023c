package model

import "time"

// Ticket is one passenger's right to board.  Token is the signed
// credential presented at the gate; Used flips false→true exactly once
// through the redemption gate.
type Ticket struct {
	ID            string     `db:"id" json:"ticket_id"`
	BookingID     string     `db:"booking_id" json:"booking_id"`
	PassengerName string     `db:"passenger_name" json:"passenger_name"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Token         string     `db:"token" json:"token"`
	Used          bool       `db:"used" json:"used"`
	UsedAt        *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// BookingDetail is a booking together with its tickets.
type BookingDetail struct {
	Booking
	Tickets []Ticket `json:"tickets"`
}
