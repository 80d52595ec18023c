package repository

import (
	"context"
	"strings"
	"time"
)

// SailingSearchQuery defines the filters of a schedule search.  From and
// To bound the departure time as a half-open interval [From, To).
type SailingSearchQuery struct {
	Origin      string
	Destination string
	From        time.Time
	To          time.Time
	MinSeats    int
}

// SailingRow is one search result with the seats still available.
type SailingRow struct {
	ID              string     `db:"id" json:"id"`
	OriginPort      string     `db:"origin_port" json:"origin_port"`
	DestPort        string     `db:"dest_port" json:"dest_port"`
	DepartureTime   time.Time  `db:"departure_time" json:"departure_time"`
	ArrivalTime     *time.Time `db:"arrival_time" json:"arrival_time,omitempty"`
	Capacity        int        `db:"capacity" json:"capacity"`
	Available       int        `db:"available" json:"available"`
	VehicleCapacity int        `db:"vehicle_capacity" json:"vehicle_capacity"`
	Status          string     `db:"status" json:"status"`
	StatusReason    *string    `db:"status_reason" json:"status_reason,omitempty"`
}

// Search returns the sailings matching q ordered by departure time.
// Cancelled sailings are excluded.
func (r *SailingRepo) Search(ctx context.Context, q SailingSearchQuery) ([]SailingRow, error) {
	where := []string{"status <> 'cancelled'"}
	args := []any{}

	if q.Origin != "" {
		where = append(where, "LOWER(origin_port) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Origin)))
	}
	if q.Destination != "" {
		where = append(where, "LOWER(dest_port) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Destination)))
	}
	if !q.From.IsZero() {
		where = append(where, "departure_time >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		where = append(where, "departure_time < ?")
		args = append(args, q.To.UTC())
	}
	if q.MinSeats > 0 {
		where = append(where, "capacity - seats_allocated >= ?")
		args = append(args, q.MinSeats)
	}

	dataSQL := `SELECT id, origin_port, dest_port, departure_time, arrival_time, capacity,
			capacity - seats_allocated AS available, vehicle_capacity, status, status_reason
		FROM sailings
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY departure_time ASC`

	out := make([]SailingRow, 0)
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(dataSQL), args...); err != nil {
		return nil, err
	}
	return out, nil
}
