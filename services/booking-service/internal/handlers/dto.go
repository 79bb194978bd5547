package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type appointmentResponse struct {
	ID                 int64           `json:"id"`
	ProviderID         *int64          `json:"provider_id"`
	ClientID           int64           `json:"client_id"`
	Date               string          `json:"date"`
	Start              model.TimeOfDay `json:"start"`
	End                model.TimeOfDay `json:"end"`
	Status             model.Status    `json:"status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	ReminderSent       bool            `json:"reminder_sent"`
	CreatedAt          string          `json:"created_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                 a.ID,
		ProviderID:         a.ProviderID,
		ClientID:           a.ClientID,
		Date:               a.Date.Format(model.DateLayout),
		Start:              a.Start,
		End:                a.End,
		Status:             a.Status,
		CancellationReason: a.CancellationReason,
		ReminderSent:       a.ReminderSent,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type scheduleEntryRequest struct {
	Weekday    string           `json:"weekday"`
	WorkStart  *model.TimeOfDay `json:"work_start"`
	WorkEnd    *model.TimeOfDay `json:"work_end"`
	LunchStart *model.TimeOfDay `json:"lunch_start"`
	LunchEnd   *model.TimeOfDay `json:"lunch_end"`
	DayOff     bool             `json:"day_off"`
}

type scheduleEntryResponse struct {
	ID         int64            `json:"id"`
	ProviderID int64            `json:"provider_id"`
	Weekday    string           `json:"weekday"`
	WorkStart  *model.TimeOfDay `json:"work_start"`
	WorkEnd    *model.TimeOfDay `json:"work_end"`
	LunchStart *model.TimeOfDay `json:"lunch_start"`
	LunchEnd   *model.TimeOfDay `json:"lunch_end"`
	DayOff     bool             `json:"day_off"`
}

func toScheduleResponse(e model.ScheduleEntry) scheduleEntryResponse {
	return scheduleEntryResponse{
		ID:         e.ID,
		ProviderID: e.ProviderID,
		Weekday:    strings.ToLower(e.Weekday.String()),
		WorkStart:  e.WorkStart,
		WorkEnd:    e.WorkEnd,
		LunchStart: e.LunchStart,
		LunchEnd:   e.LunchEnd,
		DayOff:     e.DayOff,
	}
}

type monthStatsResponse struct {
	Month               string `json:"month"`
	Finished            int    `json:"finished"`
	NotAccepted         int    `json:"not_accepted"`
	CancelledByClient   int    `json:"cancelled_by_client"`
	CancelledByProvider int    `json:"cancelled_by_provider"`
}

func parseWeekday(raw string) (time.Weekday, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.ToLower(wd.String()) == raw {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", raw)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
