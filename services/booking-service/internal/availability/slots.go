package availability

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type Interval struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

type SlotState string

const (
	SlotFree   SlotState = "free"
	SlotBooked SlotState = "booked"
	SlotPast   SlotState = "past"
)

type Slot struct {
	Start model.TimeOfDay `json:"start"`
	End   model.TimeOfDay `json:"end"`
	State SlotState       `json:"state"`
}

// DaySlots lays the working day of entry out in consecutive fixed-length
// slots, skipping any that touch lunch, and marks each one free, booked
// (overlaps busy) or past (starts before now). now is local wall clock.
func DaySlots(entry *model.ScheduleEntry, date time.Time, busy []Interval, now time.Time) []Slot {
	if entry == nil || entry.DayOff || entry.WorkStart == nil || entry.WorkEnd == nil {
		return nil
	}
	date = model.DateOf(date)
	today := model.DateOf(now)
	nowMinute := model.TimeOfDayOf(now)

	var slots []Slot
	for start := *entry.WorkStart; start+model.SlotLength <= *entry.WorkEnd; start += model.SlotLength {
		end := start + model.SlotLength
		if entry.HasLunch() && overlaps(start, end, *entry.LunchStart, *entry.LunchEnd) {
			continue
		}
		state := SlotFree
		switch {
		case overlapsAny(start, end, busy):
			state = SlotBooked
		case date.Before(today) || (date.Equal(today) && start < nowMinute):
			state = SlotPast
		}
		slots = append(slots, Slot{Start: start, End: end, State: state})
	}
	return slots
}

// AvailableSlots returns the free slot starts of DaySlots.
func AvailableSlots(entry *model.ScheduleEntry, date time.Time, busy []Interval, now time.Time) []model.TimeOfDay {
	var out []model.TimeOfDay
	for _, s := range DaySlots(entry, date, busy, now) {
		if s.State == SlotFree {
			out = append(out, s.Start)
		}
	}
	return out
}

func overlapsAny(start, end model.TimeOfDay, busy []Interval) bool {
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
