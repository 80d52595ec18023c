// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumers that move them.
package queue

// BookingConfirmedEvent is published when a booking becomes confirmed.
// It carries enough of the booking and sailing for downstream consumers
// to write a manifest line or notify the passengers without querying the
// primary database.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	Reference     string   `json:"booking_reference"`
	SailingID     string   `json:"sailing_id"`
	OriginPort    string   `json:"origin_port"`
	DestPort      string   `json:"dest_port"`
	DepartureTime string   `json:"departure_time"`
	PaxCount      int      `json:"pax_count"`
	Passengers    []string `json:"passengers"`
	VehiclePlate  string   `json:"vehicle_plate,omitempty"`
	ConfirmedAt   string   `json:"confirmed_at"`
}
