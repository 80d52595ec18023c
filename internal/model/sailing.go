package model

import "time"

// SailingStatus is the operational status of a sailing. The schedule
// itself is immutable once published; only this status moves.
type SailingStatus string

const (
	SailingOnTime    SailingStatus = "on_time"
	SailingDelayed   SailingStatus = "delayed"
	SailingCancelled SailingStatus = "cancelled"
)

// ParseSailingStatus maps a raw status string onto the closed set of
// sailing statuses.
func ParseSailingStatus(raw string) (SailingStatus, bool) {
	switch s := SailingStatus(raw); s {
	case SailingOnTime, SailingDelayed, SailingCancelled:
		return s, true
	}
	return "", false
}

// Sailing represents one scheduled crossing between two ports.  Capacity
// is fixed at scheduling time; SeatsAllocated is the running total of
// seats converted from holds into bookings and is only ever changed by
// conditional updates in the capacity ledger.
//
// Fields:
//
//	ID              – primary key identifier.
//	OriginPort      – departure port.
//	DestPort        – arrival port.
//	DepartureTime   – scheduled departure (UTC).
//	ArrivalTime     – scheduled arrival (UTC), optional.
//	Capacity        – total passenger seats, always > 0.
//	SeatsAllocated  – seats held by pending or confirmed bookings.
//	VehicleCapacity – vehicle deck slots (informational).
//	Status          – on_time, delayed or cancelled.
//	StatusReason    – free text explaining a delay or cancellation.
type Sailing struct {
	ID              string        `db:"id" json:"id"`
	OriginPort      string        `db:"origin_port" json:"origin_port"`
	DestPort        string        `db:"dest_port" json:"dest_port"`
	DepartureTime   time.Time     `db:"departure_time" json:"departure_time"`
	ArrivalTime     *time.Time    `db:"arrival_time" json:"arrival_time,omitempty"`
	Capacity        int           `db:"capacity" json:"capacity"`
	SeatsAllocated  int           `db:"seats_allocated" json:"-"`
	VehicleCapacity int           `db:"vehicle_capacity" json:"vehicle_capacity"`
	Status          SailingStatus `db:"status" json:"status"`
	StatusReason    *string       `db:"status_reason" json:"status_reason,omitempty"`
	StatusUpdatedAt *time.Time    `db:"status_updated_at" json:"status_updated_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Available returns the number of seats that can still be allocated.
func (s Sailing) Available() int {
	if n := s.Capacity - s.SeatsAllocated; n > 0 {
		return n
	}
	return 0
}
