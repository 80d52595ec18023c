package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ManifestWriter appends one line per confirmed booking to a log file,
// giving port staff a running passenger manifest.
type ManifestWriter struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewManifestWriter writes to dir/booking.log.
func NewManifestWriter(dir string, log *slog.Logger) *ManifestWriter {
	if log == nil {
		log = slog.Default()
	}
	return &ManifestWriter{path: filepath.Join(dir, "booking.log"), log: log}
}

// Handle is a HandlerFunc for the booking.confirmed queue.
func (w *ManifestWriter) Handle(_ context.Context, body []byte) Outcome {
	if err := w.write(body); err != nil {
		w.log.Error("manifest: handle message failed", "err", err)
		return Reject
	}
	return Ack
}

func (w *ManifestWriter) write(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | reference=%s | sailing_id=%s | route=\"%s -> %s\" | departs=%s | pax=%d | passengers=[%s]",
		ev.ConfirmedAt, ev.BookingID, ev.Reference, ev.SailingID, ev.OriginPort, ev.DestPort,
		ev.DepartureTime, ev.PaxCount, strings.Join(ev.Passengers, ","))
	if ev.VehiclePlate != "" {
		line += " | vehicle=" + ev.VehiclePlate
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
