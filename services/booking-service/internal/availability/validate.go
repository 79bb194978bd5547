package availability

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var (
	ErrInvalidTime      = errors.New("start time out of range")
	ErrDateInPast       = errors.New("date is in the past")
	ErrDateTooFar       = errors.New("date is more than one month ahead")
	ErrStartInPast      = errors.New("start time has already passed")
	ErrNoTemplate       = errors.New("provider has no schedule for this weekday")
	ErrDayOff           = errors.New("provider is off on this day")
	ErrOutsideWorkHours = errors.New("requested time is outside working hours")
	ErrLunchConflict    = errors.New("requested time overlaps the lunch break")
)

var validationErrors = []error{
	ErrInvalidTime, ErrDateInPast, ErrDateTooFar, ErrStartInPast,
	ErrNoTemplate, ErrDayOff, ErrOutsideWorkHours, ErrLunchConflict,
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Horizon is the last bookable date: the same day next month, clamped to the
// end of next month so Jan 31 gives Feb 28 (or 29).
func Horizon(today time.Time) time.Time {
	y, m, _ := today.Date()
	last := time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
	if next := today.AddDate(0, 1, 0); next.Before(last) {
		return next
	}
	return last
}

// Validate checks a requested slot against the provider's template for the
// weekday of date and returns the slot end. now is the caller's local wall
// clock; "today" is its calendar date. entry may be nil.
func Validate(entry *model.ScheduleEntry, date time.Time, start model.TimeOfDay, now time.Time) (model.TimeOfDay, error) {
	if !start.Valid() || start+model.SlotLength > model.EndOfDay {
		return 0, ErrInvalidTime
	}
	date = model.DateOf(date)
	today := model.DateOf(now)
	if date.Before(today) {
		return 0, ErrDateInPast
	}
	if date.After(Horizon(today)) {
		return 0, ErrDateTooFar
	}
	if date.Equal(today) && start < model.TimeOfDayOf(now) {
		return 0, ErrStartInPast
	}

	end := start + model.SlotLength

	if entry == nil || entry.Weekday != date.Weekday() {
		return 0, ErrNoTemplate
	}
	if entry.DayOff || entry.WorkStart == nil || entry.WorkEnd == nil {
		return 0, ErrDayOff
	}
	if start < *entry.WorkStart || end > *entry.WorkEnd {
		return 0, ErrOutsideWorkHours
	}
	if entry.HasLunch() && overlaps(start, end, *entry.LunchStart, *entry.LunchEnd) {
		return 0, ErrLunchConflict
	}
	return end, nil
}

// overlaps is the half-open interval test: [aStart,aEnd) meets [bStart,bEnd).
func overlaps(aStart, aEnd, bStart, bEnd model.TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}
