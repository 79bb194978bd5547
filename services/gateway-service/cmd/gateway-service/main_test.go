package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
)

type seen struct {
	Path   string `json:"path"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func newGateway(t *testing.T, secret string) http.Handler {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(seen{
			Path:   r.URL.Path,
			UserID: r.Header.Get(auth.HeaderUserID),
			Role:   r.Header.Get(auth.HeaderRole),
		})
	}))
	t.Cleanup(backend.Close)

	u, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mux := http.NewServeMux()
	registerRoutes(mux, u, auth.NewVerifier(secret, nil))
	return mux
}

func send(t *testing.T, h http.Handler, method, path, token string, headers map[string]string) (*httptest.ResponseRecorder, seen) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	var got seen
	if rw.Code == http.StatusOK {
		if err := json.Unmarshal(rw.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode backend echo: %v", err)
		}
	}
	return rw, got
}

func TestGateway_InjectsVerifiedIdentity(t *testing.T) {
	secret := "gw-secret"
	h := newGateway(t, secret)
	token, err := auth.SignHS256("7", auth.RoleClient, time.Hour, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rw, got := send(t, h, http.MethodGet, "/api/v1/appointments/12", token, map[string]string{auth.HeaderRole: "admin"})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got.UserID != "7" || got.Role != "client" || got.Path != "/api/v1/appointments/12" {
		t.Fatalf("unexpected forwarded identity %+v", got)
	}

	rw, _ = send(t, h, http.MethodGet, "/api/v1/appointments", "", map[string]string{auth.HeaderUserID: "1", auth.HeaderRole: "admin"})
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("forged headers without a token must be rejected, got %d", rw.Code)
	}

	rw, _ = send(t, h, http.MethodGet, "/api/v1/appointments", "not-a-token", nil)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rw.Code)
	}
}

func TestGateway_RoleRestrictedRoutes(t *testing.T) {
	secret := "gw-secret"
	h := newGateway(t, secret)
	client, _ := auth.SignHS256("7", auth.RoleClient, time.Hour, secret)
	provider, _ := auth.SignHS256("10", auth.RoleProvider, time.Hour, secret)

	if rw, _ := send(t, h, http.MethodPost, "/api/v1/admin/appointments", client, nil); rw.Code != http.StatusForbidden {
		t.Fatalf("clients cannot book on behalf, got %d", rw.Code)
	}
	if rw, _ := send(t, h, http.MethodPost, "/api/v1/admin/appointments", provider, nil); rw.Code != http.StatusOK {
		t.Fatalf("providers reach the admin booking route, got %d", rw.Code)
	}
	if rw, _ := send(t, h, http.MethodPut, "/api/v1/schedule/3", client, nil); rw.Code != http.StatusForbidden {
		t.Fatalf("clients cannot edit schedules, got %d", rw.Code)
	}
}

func TestGateway_PublicTimetableStripsIdentity(t *testing.T) {
	h := newGateway(t, "gw-secret")

	rw, got := send(t, h, http.MethodGet, "/api/v1/providers/10/timetable?date=2026-01-27", "", map[string]string{auth.HeaderUserID: "1", auth.HeaderRole: "admin"})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got.UserID != "" || got.Role != "" {
		t.Fatalf("anonymous identity headers must be dropped, got %+v", got)
	}

	if rw, _ := send(t, h, http.MethodGet, "/api/v1/providers/10/statistics", "", nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("statistics need a token, got %d", rw.Code)
	}
}
