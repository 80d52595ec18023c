package router

import (
	"net/http"
	"sort"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/handler"
)

func TestRouteTable(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e)
	// Handlers are never invoked here; zero values are enough to register.
	RegisterAPI(e, Handlers{
		Sailings: &handler.SailingHandler{},
		Bookings: &handler.BookingHandler{},
		Scan:     &handler.ScanHandler{},
		Payments: &handler.PaymentHandler{},
	}, Options{})

	var got []string
	for _, r := range e.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	sort.Strings(got)

	want := []string{
		http.MethodGet + " /healthz",
		http.MethodGet + " /v1/bookings/:id",
		http.MethodGet + " /v1/bookings/ref/:reference",
		http.MethodGet + " /v1/sailings/:id",
		http.MethodGet + " /v1/sailings/search",
		http.MethodGet + " /v1/tickets/:id",
		http.MethodPatch + " /v1/sailings/:id/status",
		http.MethodPost + " /v1/bookings",
		http.MethodPost + " /v1/bookings/:id/cancel",
		http.MethodPost + " /v1/bookings/:id/confirm",
		http.MethodPost + " /v1/payments/webhook",
		http.MethodPost + " /v1/scan",
	}
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("got routes %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("route %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
