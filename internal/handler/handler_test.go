package handler

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/credential"
	"github.com/iliyamo/ferry-reservation/internal/model"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/service"
	"github.com/iliyamo/ferry-reservation/internal/testutil"
)

type testServer struct {
	e       *echo.Echo
	db      *sqlx.DB
	sailing *model.Sailing
}

func newTestServer(t *testing.T, capacity int, opts service.BookingOptions) *testServer {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewManual(testutil.Epoch)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	creds, err := credential.NewService(key, nil, clk)
	if err != nil {
		t.Fatal(err)
	}
	holds := repository.NewHoldRepo(db)
	sailings := repository.NewSailingRepo(db)
	tickets := repository.NewTicketRepo(db)
	ledger := service.NewCapacityLedger(db, holds, sailings, clk, log)
	bookings := service.NewBookingService(service.BookingDeps{
		DB:        db,
		Ledger:    ledger,
		Sailings:  sailings,
		Bookings:  repository.NewBookingRepo(db),
		Tickets:   tickets,
		Events:    repository.NewPaymentEventRepo(db),
		Issuer:    creds,
		Publisher: service.NopPublisher{},
		Clock:     clk,
		Log:       log,
	}, opts)

	sh := NewSailingHandler(service.NewScheduleService(sailings, clk), log)
	bh := NewBookingHandler(bookings, log)
	sc := NewScanHandler(service.NewGate(creds, tickets, clk, log), log)
	ph := NewPaymentHandler(bookings, log)

	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/v1/sailings/search", sh.Search)
	e.GET("/v1/sailings/:id", sh.Get)
	e.PATCH("/v1/sailings/:id/status", sh.UpdateStatus)
	e.POST("/v1/bookings", bh.Create)
	e.GET("/v1/bookings/:id", bh.Get)
	e.GET("/v1/bookings/ref/:reference", bh.GetByReference)
	e.POST("/v1/bookings/:id/confirm", bh.Confirm)
	e.POST("/v1/bookings/:id/cancel", bh.Cancel)
	e.GET("/v1/tickets/:id", bh.GetTicket)
	e.POST("/v1/scan", sc.Scan)
	e.POST("/v1/payments/webhook", ph.Webhook)

	return &testServer{e: e, db: db, sailing: testutil.SeedSailing(t, db, capacity)}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type createdBooking struct {
	BookingID string `json:"booking_id"`
	Reference string `json:"booking_reference"`
	Status    string `json:"status"`
}

func (s *testServer) book(t *testing.T, names ...string) createdBooking {
	t.Helper()
	pax := make([]string, len(names))
	for i, n := range names {
		pax[i] = `{"name":"` + n + `"}`
	}
	rec := s.do(t, http.MethodPost, "/v1/bookings",
		`{"sailing_id":"`+s.sailing.ID+`","passengers":[`+strings.Join(pax, ",")+`]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: %d %s", rec.Code, rec.Body.String())
	}
	var out createdBooking
	decode(t, rec, &out)
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1, service.BookingOptions{})
	rec := s.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateBookingAndFetch(t *testing.T) {
	s := newTestServer(t, 10, service.BookingOptions{})
	created := s.book(t, "ada lovelace", "Alan  Turing")
	if created.Status != string(model.BookingConfirmed) || !model.ValidReference(created.Reference) {
		t.Fatalf("unexpected booking %+v", created)
	}

	rec := s.do(t, http.MethodGet, "/v1/bookings/"+created.BookingID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get booking: %d", rec.Code)
	}
	var detail model.BookingDetail
	decode(t, rec, &detail)
	if len(detail.Tickets) != 2 || detail.Tickets[0].Token == "" {
		t.Fatalf("expected two signed tickets, got %+v", detail.Tickets)
	}

	rec = s.do(t, http.MethodGet, "/v1/bookings/ref/"+created.Reference, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get by reference: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/v1/tickets/"+detail.Tickets[0].ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get ticket: %d", rec.Code)
	}
}

func TestCreateBookingErrors(t *testing.T) {
	s := newTestServer(t, 1, service.BookingOptions{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"sailing_id":`, http.StatusBadRequest},
		{"no passengers", `{"sailing_id":"` + s.sailing.ID + `","passengers":[]}`, http.StatusUnprocessableEntity},
		{"short name", `{"sailing_id":"` + s.sailing.ID + `","passengers":[{"name":"x"}]}`, http.StatusUnprocessableEntity},
		{"unknown sailing", `{"sailing_id":"nope","passengers":[{"name":"Ada Lovelace"}]}`, http.StatusNotFound},
		{"over capacity", `{"sailing_id":"` + s.sailing.ID + `","passengers":[{"name":"Ada Lovelace"},{"name":"Alan Turing"}]}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/bookings", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("got %d %s, want %d", rec.Code, rec.Body.String(), tt.want)
			}
		})
	}
	if n := testutil.CountRows(t, s.db, "bookings"); n != 0 {
		t.Fatalf("failed requests left %d bookings", n)
	}
}

func TestBookingNotFound(t *testing.T) {
	s := newTestServer(t, 1, service.BookingOptions{})
	for _, target := range []string{"/v1/bookings/missing", "/v1/bookings/ref/FRY-AB123CD", "/v1/tickets/missing"} {
		if rec := s.do(t, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: got %d", target, rec.Code)
		}
	}
}

func TestCancelTwiceAndConfirmAfterCancel(t *testing.T) {
	s := newTestServer(t, 4, service.BookingOptions{})
	b := s.book(t, "Grace Hopper")

	if rec := s.do(t, http.MethodPost, "/v1/bookings/"+b.BookingID+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if n := testutil.SeatsAllocated(t, s.db, s.sailing.ID); n != 0 {
		t.Fatalf("seats not released: %d", n)
	}
	if rec := s.do(t, http.MethodPost, "/v1/bookings/"+b.BookingID+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("repeat cancel should be a no-op, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/v1/bookings/"+b.BookingID+"/confirm", ""); rec.Code != http.StatusConflict {
		t.Fatalf("confirm after cancel: got %d", rec.Code)
	}
}

func TestScan(t *testing.T) {
	s := newTestServer(t, 4, service.BookingOptions{})
	b := s.book(t, "Grace Hopper")
	var detail model.BookingDetail
	decode(t, s.do(t, http.MethodGet, "/v1/bookings/"+b.BookingID, ""), &detail)
	token := detail.Tickets[0].Token

	var first, second service.Decision
	rec := s.do(t, http.MethodPost, "/v1/scan", `{"token":"`+token+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: %d", rec.Code)
	}
	decode(t, rec, &first)
	if !first.Valid || first.PassengerName != "Grace Hopper" {
		t.Fatalf("first scan: %+v", first)
	}

	decode(t, s.do(t, http.MethodPost, "/v1/scan", `{"token":"`+token+`"}`), &second)
	if second.Valid || second.Reason != service.ReasonAlreadyUsed {
		t.Fatalf("second scan: %+v", second)
	}

	var junk service.Decision
	rec = s.do(t, http.MethodPost, "/v1/scan", `{"token":"not-a-token"}`)
	decode(t, rec, &junk)
	if rec.Code != http.StatusOK || junk.Valid || junk.Reason != service.ReasonMalformedCredential {
		t.Fatalf("junk scan: %d %+v", rec.Code, junk)
	}

	if rec := s.do(t, http.MethodPost, "/v1/scan", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: got %d", rec.Code)
	}
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t, 4, service.BookingOptions{RequirePayment: true})
	b := s.book(t, "Grace Hopper")
	if b.Status != string(model.BookingPending) {
		t.Fatalf("expected pending booking, got %s", b.Status)
	}

	event := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"metadata":{"booking_id":"` + b.BookingID + `"}}}}`
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/v1/payments/webhook", event)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("delivery %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}
	if n := testutil.CountRows(t, s.db, "payment_events"); n != 1 {
		t.Fatalf("expected one recorded event, got %d", n)
	}

	var detail model.BookingDetail
	decode(t, s.do(t, http.MethodGet, "/v1/bookings/"+b.BookingID, ""), &detail)
	if detail.Status != model.BookingConfirmed {
		t.Fatalf("booking not confirmed: %s", detail.Status)
	}

	if rec := s.do(t, http.MethodPost, "/v1/payments/webhook", `{"type":"charge.refunded"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("event without id: got %d", rec.Code)
	}
}

func TestSailingEndpoints(t *testing.T) {
	s := newTestServer(t, 5, service.BookingOptions{})
	day := s.sailing.DepartureTime.Format("2006-01-02")

	var page struct {
		Data  []repository.SailingRow `json:"data"`
		Total int                     `json:"total"`
	}
	rec := s.do(t, http.MethodGet, "/v1/sailings/search?origin=dover&destination=CALAIS&date="+day+"&pax=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &page)
	if page.Total != 1 || page.Data[0].ID != s.sailing.ID {
		t.Fatalf("unexpected search result %+v", page)
	}

	rec = s.do(t, http.MethodGet, "/v1/sailings/search?origin=Dover&destination=Calais&date=tomorrow", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad date: got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPatch, "/v1/sailings/"+s.sailing.ID+"/status", `{"status":"delayed","reason":"fog"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"delayed"`) {
		t.Fatalf("update status: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPatch, "/v1/sailings/"+s.sailing.ID+"/status", `{"status":"sunk"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad status: got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/sailings/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing sailing: got %d", rec.Code)
	}
}
