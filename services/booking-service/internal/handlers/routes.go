package handlers

import "net/http"

// Register mounts the booking API on mux.
func Register(mux *http.ServeMux, b *BookingHandler, s *ScheduleHandler) {
	mux.HandleFunc("POST /api/v1/appointments", b.Create)
	mux.HandleFunc("GET /api/v1/appointments", b.List)
	mux.HandleFunc("POST /api/v1/admin/appointments", b.CreateOnBehalf)
	mux.HandleFunc("GET /api/v1/appointments/{id}", b.Get)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", b.Delete)
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", b.Confirm)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", b.Cancel)
	mux.HandleFunc("GET /api/v1/providers/{id}/timetable", b.Timetable)
	mux.HandleFunc("GET /api/v1/providers/{id}/statistics", b.Statistics)

	mux.HandleFunc("GET /api/v1/providers/{id}/schedule", s.List)
	mux.HandleFunc("POST /api/v1/providers/{id}/schedule", s.Create)
	mux.HandleFunc("POST /api/v1/providers/{id}/schedule/seed", s.Seed)
	mux.HandleFunc("PUT /api/v1/schedule/{entryID}", s.Update)
	mux.HandleFunc("DELETE /api/v1/schedule/{entryID}", s.Delete)
}
