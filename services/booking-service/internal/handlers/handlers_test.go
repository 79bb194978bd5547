package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/gormstore"
)

type identity struct {
	id   int64
	role auth.Role
}

var (
	asClient   = identity{1, auth.RoleClient}
	asClient2  = identity{2, auth.RoleClient}
	asProvider = identity{10, auth.RoleProvider}
	asAdmin    = identity{99, auth.RoleAdmin}
	anonymous  = identity{}
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := gormstore.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.UpsertProvider(ctx, model.Provider{ID: 10, Name: "Dr Ten", Active: true}); err != nil {
			return err
		}
		if err := tx.UpsertClient(ctx, model.Client{ID: 1, Name: "A", Email: "a@example.com"}); err != nil {
			return err
		}
		if err := tx.UpsertClient(ctx, model.Client{ID: 2, Name: "B", Email: "b@example.com"}); err != nil {
			return err
		}
		_, err := schedule.Seed(ctx, tx, 10)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFixed(time.Date(2026, 1, 26, 7, 0, 0, 0, time.UTC), time.UTC)
	coord := booking.NewCoordinator(store, clk, notify.New(notify.NewRecorder(), logger), logger)

	mux := http.NewServeMux()
	Register(mux, NewBookingHandler(coord, logger), NewScheduleHandler(schedule.NewService(store), logger))
	return mux
}

func do(t *testing.T, h http.Handler, who identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if who.id != 0 {
		req.Header.Set(auth.HeaderUserID, strconv.FormatInt(who.id, 10))
		req.Header.Set(auth.HeaderRole, string(who.role))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func TestBookingFlow(t *testing.T) {
	h := newServer(t)
	book := map[string]any{"provider_id": 10, "date": "2026-01-27", "start": "09:00"}

	expectStatus(t, do(t, h, anonymous, http.MethodPost, "/api/v1/appointments", book), http.StatusUnauthorized)
	expectStatus(t, do(t, h, asProvider, http.MethodPost, "/api/v1/appointments", book), http.StatusForbidden)

	rr := do(t, h, asClient, http.MethodPost, "/api/v1/appointments", book)
	expectStatus(t, rr, http.StatusCreated)
	created := decode[appointmentResponse](t, rr)
	if created.Status != model.StatusPending || created.End != model.NewTimeOfDay(9, 30) || created.ClientID != 1 {
		t.Fatalf("unexpected appointment %+v", created)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"status":"pending"`)) || !bytes.Contains(rr.Body.Bytes(), []byte(`"start":"09:00"`)) {
		t.Fatalf("unexpected wire format %s", rr.Body.String())
	}
	id := strconv.FormatInt(created.ID, 10)

	overlap := map[string]any{"provider_id": 10, "date": "2026-01-27", "start": "09:15"}
	expectStatus(t, do(t, h, asClient2, http.MethodPost, "/api/v1/appointments", overlap), http.StatusConflict)

	lunch := map[string]any{"provider_id": 10, "date": "2026-01-27", "start": "13:00"}
	expectStatus(t, do(t, h, asClient2, http.MethodPost, "/api/v1/appointments", lunch), http.StatusBadRequest)

	unknown := map[string]any{"provider_id": 77, "date": "2026-01-27", "start": "10:00"}
	expectStatus(t, do(t, h, asClient2, http.MethodPost, "/api/v1/appointments", unknown), http.StatusNotFound)

	expectStatus(t, do(t, h, asClient, http.MethodPost, "/api/v1/appointments", map[string]any{"provider_id": 10, "date": "2026-01-27", "start": "9am"}), http.StatusBadRequest)
	for _, body := range []map[string]any{
		{"provider_id": 10, "date": "2026-01-27"},
		{"provider_id": 10, "date": "2026-01-27", "start": nil},
	} {
		rr := do(t, h, asClient, http.MethodPost, "/api/v1/appointments", body)
		expectStatus(t, rr, http.StatusBadRequest)
		if !strings.Contains(rr.Body.String(), "start") {
			t.Fatalf("expected missing start to be reported, got %s", rr.Body.String())
		}
	}

	expectStatus(t, do(t, h, asClient2, http.MethodGet, "/api/v1/appointments/"+id, nil), http.StatusForbidden)
	expectStatus(t, do(t, h, asClient, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", nil), http.StatusForbidden)

	rr = do(t, h, asProvider, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[appointmentResponse](t, rr); got.Status != model.StatusActive {
		t.Fatalf("expected active, got %s", got.Status)
	}
	expectStatus(t, do(t, h, asProvider, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", nil), http.StatusConflict)

	expectStatus(t, do(t, h, asProvider, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", map[string]string{"reason": ""}), http.StatusBadRequest)
	expectStatus(t, do(t, h, asAdmin, http.MethodDelete, "/api/v1/appointments/"+id, nil), http.StatusConflict)

	rr = do(t, h, asClient, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[appointmentResponse](t, rr); got.Status != model.StatusCancelledByClient {
		t.Fatalf("expected cancelled_by_client, got %s", got.Status)
	}

	expectStatus(t, do(t, h, asClient, http.MethodDelete, "/api/v1/appointments/"+id, nil), http.StatusForbidden)
	expectStatus(t, do(t, h, asAdmin, http.MethodDelete, "/api/v1/appointments/"+id, nil), http.StatusNoContent)
	expectStatus(t, do(t, h, asAdmin, http.MethodGet, "/api/v1/appointments/"+id, nil), http.StatusNotFound)
}

func TestAdminBookingAndList(t *testing.T) {
	h := newServer(t)

	rr := do(t, h, asAdmin, http.MethodPost, "/api/v1/admin/appointments", map[string]any{"client_id": 2, "provider_id": 10, "date": "2026-01-28", "start": "10:00"})
	expectStatus(t, rr, http.StatusCreated)
	expectStatus(t, do(t, h, asAdmin, http.MethodPost, "/api/v1/admin/appointments", map[string]any{"provider_id": 10, "date": "2026-01-28", "start": "11:00"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, asClient, http.MethodPost, "/api/v1/appointments", map[string]any{"provider_id": 10, "date": "2026-01-28", "start": "11:00"}), http.StatusCreated)

	rr = do(t, h, asClient2, http.MethodGet, "/api/v1/appointments", nil)
	expectStatus(t, rr, http.StatusOK)
	if items := decode[[]appointmentResponse](t, rr); len(items) != 1 || items[0].ClientID != 2 {
		t.Fatalf("client must only see own appointments, got %+v", items)
	}

	rr = do(t, h, asAdmin, http.MethodGet, "/api/v1/appointments?provider_id=10&status=pending&start_from=10:30", nil)
	expectStatus(t, rr, http.StatusOK)
	if items := decode[[]appointmentResponse](t, rr); len(items) != 1 || items[0].Start != model.NewTimeOfDay(11, 0) {
		t.Fatalf("unexpected filtered list %+v", items)
	}

	expectStatus(t, do(t, h, asAdmin, http.MethodGet, "/api/v1/appointments?date_from=2026-02-01&date_to=2026-01-01", nil), http.StatusBadRequest)
	expectStatus(t, do(t, h, asAdmin, http.MethodGet, "/api/v1/appointments?status=lost", nil), http.StatusBadRequest)
}

func TestTimetableAndStatistics(t *testing.T) {
	h := newServer(t)
	expectStatus(t, do(t, h, asClient, http.MethodPost, "/api/v1/appointments", map[string]any{"provider_id": 10, "date": "2026-01-27", "start": "09:00"}), http.StatusCreated)

	rr := do(t, h, asClient, http.MethodGet, "/api/v1/providers/10/timetable?date=2026-01-27", nil)
	expectStatus(t, rr, http.StatusOK)
	slots := decode[[]struct {
		Start string `json:"start"`
		State string `json:"state"`
	}](t, rr)
	if len(slots) != 16 || slots[0].Start != "09:00" || slots[0].State != "booked" || slots[1].State != "free" {
		t.Fatalf("unexpected timetable %+v", slots)
	}
	expectStatus(t, do(t, h, asClient, http.MethodGet, "/api/v1/providers/10/timetable", nil), http.StatusBadRequest)

	expectStatus(t, do(t, h, asClient, http.MethodGet, "/api/v1/providers/10/statistics", nil), http.StatusForbidden)
	rr = do(t, h, asProvider, http.MethodGet, "/api/v1/providers/10/statistics", nil)
	expectStatus(t, rr, http.StatusOK)
	stats := decode[[]monthStatsResponse](t, rr)
	if len(stats) != booking.StatsMonths || stats[len(stats)-1].Month != "2026-01" {
		t.Fatalf("unexpected statistics %+v", stats)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	h := newServer(t)

	rr := do(t, h, asClient, http.MethodGet, "/api/v1/providers/10/schedule", nil)
	expectStatus(t, rr, http.StatusOK)
	entries := decode[[]scheduleEntryResponse](t, rr)
	if len(entries) != 7 {
		t.Fatalf("expected seeded week, got %d", len(entries))
	}
	var monday scheduleEntryResponse
	for _, e := range entries {
		if e.Weekday == "monday" {
			monday = e
		}
	}

	dup := map[string]any{"weekday": "monday", "work_start": "08:00", "work_end": "12:00"}
	expectStatus(t, do(t, h, asProvider, http.MethodPost, "/api/v1/providers/10/schedule", dup), http.StatusConflict)
	expectStatus(t, do(t, h, asClient, http.MethodPost, "/api/v1/providers/10/schedule", dup), http.StatusForbidden)
	expectStatus(t, do(t, h, asProvider, http.MethodPost, "/api/v1/providers/10/schedule", map[string]any{"weekday": "someday"}), http.StatusBadRequest)

	path := "/api/v1/schedule/" + strconv.FormatInt(monday.ID, 10)
	bad := map[string]any{"work_start": "12:00", "work_end": "08:00"}
	expectStatus(t, do(t, h, asProvider, http.MethodPut, path, bad), http.StatusBadRequest)

	rr = do(t, h, asProvider, http.MethodPut, path, map[string]any{"work_start": "10:00", "work_end": "16:00"})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[scheduleEntryResponse](t, rr); got.Weekday != "monday" || got.LunchStart != nil || *got.WorkStart != model.NewTimeOfDay(10, 0) {
		t.Fatalf("unexpected update %+v", got)
	}

	expectStatus(t, do(t, h, asAdmin, http.MethodDelete, path, nil), http.StatusNoContent)
	rr = do(t, h, asAdmin, http.MethodPost, "/api/v1/providers/10/schedule/seed", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[map[string]int](t, rr); got["created"] != 1 {
		t.Fatalf("expected reseed to restore monday, got %v", got)
	}
}
