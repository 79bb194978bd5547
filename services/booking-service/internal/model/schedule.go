package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid schedule entry")

// ScheduleEntry is a provider's working template for one weekday.
type ScheduleEntry struct {
	ID         int64
	ProviderID int64
	Weekday    time.Weekday
	WorkStart  *TimeOfDay
	WorkEnd    *TimeOfDay
	LunchStart *TimeOfDay
	LunchEnd   *TimeOfDay
	DayOff     bool
}

func (e ScheduleEntry) HasLunch() bool {
	return e.LunchStart != nil && e.LunchEnd != nil
}

func (e ScheduleEntry) Validate() error {
	if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday out of range", ErrInvalidSchedule)
	}
	if e.DayOff {
		if e.WorkStart != nil || e.WorkEnd != nil || e.LunchStart != nil || e.LunchEnd != nil {
			return fmt.Errorf("%w: day off cannot carry hours", ErrInvalidSchedule)
		}
		return nil
	}
	if e.WorkStart == nil || e.WorkEnd == nil {
		return fmt.Errorf("%w: work start and end are required", ErrInvalidSchedule)
	}
	for _, t := range []*TimeOfDay{e.WorkStart, e.WorkEnd, e.LunchStart, e.LunchEnd} {
		if t != nil && !t.Valid() {
			return fmt.Errorf("%w: time out of range", ErrInvalidSchedule)
		}
	}
	if *e.WorkEnd <= *e.WorkStart {
		return fmt.Errorf("%w: work end must be after work start", ErrInvalidSchedule)
	}
	if (e.LunchStart == nil) != (e.LunchEnd == nil) {
		return fmt.Errorf("%w: lunch start and end must be set together", ErrInvalidSchedule)
	}
	if e.HasLunch() {
		if *e.LunchEnd <= *e.LunchStart {
			return fmt.Errorf("%w: lunch end must be after lunch start", ErrInvalidSchedule)
		}
		if *e.LunchStart <= *e.WorkStart || *e.LunchEnd >= *e.WorkEnd {
			return fmt.Errorf("%w: lunch must lie strictly within work hours", ErrInvalidSchedule)
		}
	}
	return nil
}

func Ptr(t TimeOfDay) *TimeOfDay { return &t }
