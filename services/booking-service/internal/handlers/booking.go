package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

type BookingHandler struct {
	coord  *booking.Coordinator
	logger *slog.Logger
}

func NewBookingHandler(coord *booking.Coordinator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coord: coord, logger: logger}
}

type createBookingRequest struct {
	ClientID   int64            `json:"client_id,omitempty"`
	ProviderID int64            `json:"provider_id"`
	Date       string           `json:"date"`
	Start      *model.TimeOfDay `json:"start"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) decodeBooking(w http.ResponseWriter, r *http.Request) (createBookingRequest, time.Time, bool) {
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return req, time.Time{}, false
	}
	if req.ProviderID <= 0 || req.Date == "" || req.Start == nil {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id, date and start are required")
		return req, time.Time{}, false
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return req, time.Time{}, false
	}
	return req, date, true
}

// Create books a slot for the calling client.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if a.Role != auth.RoleClient {
		httpx.WriteError(w, http.StatusForbidden, "only clients book for themselves; use the admin endpoint")
		return
	}
	req, date, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}
	appt, err := h.coord.Book(r.Context(), a.ID, req.ProviderID, date, *req.Start)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

// CreateOnBehalf books for the client named in the body.
func (h *BookingHandler) CreateOnBehalf(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	req, date, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}
	if req.ClientID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	appt, err := h.coord.BookOnBehalf(r.Context(), a, req.ClientID, req.ProviderID, date, *req.Start)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.coord.Get(r.Context(), a, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.coord.Delete(r.Context(), a, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.coord.Confirm(r.Context(), a, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// Cancel cancels as the caller's role: clients cancel their own bookings,
// providers and admins cancel with a reason.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	var appt model.Appointment
	if a.Role == auth.RoleClient {
		appt, err = h.coord.CancelByClient(r.Context(), a, id)
	} else {
		appt, err = h.coord.CancelByProvider(r.Context(), a, id, req.Reason)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appts, err := h.coord.List(r.Context(), a, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentResponse(appt))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func parseFilter(r *http.Request) (storage.AppointmentFilter, error) {
	q := r.URL.Query()
	var f storage.AppointmentFilter

	for key, dst := range map[string]**int64{"client_id": &f.ClientID, "provider_id": &f.ProviderID} {
		if raw := q.Get(key); raw != "" {
			id, err := parseID(raw)
			if err != nil {
				return f, fmt.Errorf("%s: %w", key, err)
			}
			*dst = &id
		}
	}
	for key, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		if raw := q.Get(key); raw != "" {
			d, err := model.ParseDate(raw)
			if err != nil {
				return f, fmt.Errorf("%s: %w", key, err)
			}
			*dst = &d
		}
	}
	for key, dst := range map[string]**model.TimeOfDay{"start_from": &f.StartFrom, "start_to": &f.StartTo} {
		if raw := q.Get(key); raw != "" {
			t, err := model.ParseTimeOfDay(raw)
			if err != nil {
				return f, fmt.Errorf("%s: %w", key, err)
			}
			*dst = &t
		}
	}
	for key, dst := range map[string]**time.Time{"created_from": &f.CreatedFrom, "created_to": &f.CreatedTo} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return f, fmt.Errorf("%s: want RFC3339", key)
			}
			*dst = &t
		}
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(part)
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	return f, nil
}

func (h *BookingHandler) Timetable(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	slots, err := h.coord.Timetable(r.Context(), providerID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slots)
}

func (h *BookingHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	providerID, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.coord.Stats(r.Context(), a, providerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]monthStatsResponse, 0, len(stats))
	for _, m := range stats {
		out = append(out, monthStatsResponse{
			Month:               m.Month.Format("2006-01"),
			Finished:            m.Finished,
			NotAccepted:         m.NotAccepted,
			CancelledByClient:   m.CancelledByClient,
			CancelledByProvider: m.CancelledByProvider,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
