package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
)

type ScheduleHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
}

func NewScheduleHandler(svc *schedule.Service, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.svc.List(r.Context(), providerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]scheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toScheduleResponse(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (model.ScheduleEntry, scheduleEntryRequest, bool) {
	var req scheduleEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return model.ScheduleEntry{}, req, false
	}
	return model.ScheduleEntry{
		WorkStart:  req.WorkStart,
		WorkEnd:    req.WorkEnd,
		LunchStart: req.LunchStart,
		LunchEnd:   req.LunchEnd,
		DayOff:     req.DayOff,
	}, req, true
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	providerID, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, req, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	entry.ProviderID = providerID
	if entry.Weekday, err = parseWeekday(req.Weekday); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.Create(r.Context(), a, entry)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toScheduleResponse(created))
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("entryID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, _, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id
	updated, err := h.svc.Update(r.Context(), a, entry)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScheduleResponse(updated))
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("entryID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Delete(r.Context(), a, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) Seed(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	providerID, err := parseID(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.SeedDefaults(r.Context(), a, providerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"created": created})
}
