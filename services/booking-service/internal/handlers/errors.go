package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case availability.IsValidationError(err),
		errors.Is(err, booking.ErrReasonRequired),
		errors.Is(err, booking.ErrInvalidFilter),
		errors.Is(err, model.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, schedule.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, schedule.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, schedule.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrProviderUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrNoIdentity):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, status, "internal error")
		return
	}
	httpx.WriteError(w, status, err.Error())
}

// actor reads the caller's identity or answers 401.
func actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, err := auth.ActorFromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
		return auth.Actor{}, false
	}
	return a, true
}
