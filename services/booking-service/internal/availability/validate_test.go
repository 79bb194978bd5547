package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

func hm(h, m int) model.TimeOfDay { return model.NewTimeOfDay(h, m) }

// 2026-01-26 is a Monday.
var monday = time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)

func mondayEntry() *model.ScheduleEntry {
	return &model.ScheduleEntry{
		ProviderID: 1,
		Weekday:    time.Monday,
		WorkStart:  model.Ptr(hm(8, 0)),
		WorkEnd:    model.Ptr(hm(18, 0)),
		LunchStart: model.Ptr(hm(12, 0)),
		LunchEnd:   model.Ptr(hm(13, 0)),
	}
}

func TestValidate_LunchConflict(t *testing.T) {
	now := monday.AddDate(0, 0, -3).Add(10 * time.Hour)
	_, err := Validate(mondayEntry(), monday, hm(12, 15), now)
	if !errors.Is(err, ErrLunchConflict) {
		t.Fatalf("expected ErrLunchConflict, got %v", err)
	}
	// 11:30-12:00 ends exactly when lunch starts.
	end, err := Validate(mondayEntry(), monday, hm(11, 30), now)
	if err != nil || end != hm(12, 0) {
		t.Fatalf("expected 12:00 end, got %s err=%v", end, err)
	}
	if _, err := Validate(mondayEntry(), monday, hm(13, 0), now); err != nil {
		t.Fatalf("13:00 starts after lunch: %v", err)
	}
}

func TestValidate_WorkHours(t *testing.T) {
	now := monday.AddDate(0, 0, -1)
	if _, err := Validate(mondayEntry(), monday, hm(7, 45), now); !errors.Is(err, ErrOutsideWorkHours) {
		t.Fatalf("expected ErrOutsideWorkHours before opening, got %v", err)
	}
	if _, err := Validate(mondayEntry(), monday, hm(17, 45), now); !errors.Is(err, ErrOutsideWorkHours) {
		t.Fatalf("expected ErrOutsideWorkHours past closing, got %v", err)
	}
	if end, err := Validate(mondayEntry(), monday, hm(17, 30), now); err != nil || end != hm(18, 0) {
		t.Fatalf("expected last slot to fit, got %s err=%v", end, err)
	}
}

func TestValidate_TemplateChecks(t *testing.T) {
	now := monday.AddDate(0, 0, -1)
	if _, err := Validate(nil, monday, hm(9, 0), now); !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
	tuesday := mondayEntry()
	tuesday.Weekday = time.Tuesday
	if _, err := Validate(tuesday, monday, hm(9, 0), now); !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate for wrong weekday, got %v", err)
	}
	off := &model.ScheduleEntry{Weekday: time.Monday, DayOff: true}
	if _, err := Validate(off, monday, hm(9, 0), now); !errors.Is(err, ErrDayOff) {
		t.Fatalf("expected ErrDayOff, got %v", err)
	}
}

func TestValidate_DateWindow(t *testing.T) {
	now := monday.Add(10*time.Hour + 5*time.Minute)
	if _, err := Validate(mondayEntry(), monday.AddDate(0, 0, -7), hm(9, 0), now); !errors.Is(err, ErrDateInPast) {
		t.Fatalf("expected ErrDateInPast, got %v", err)
	}
	if _, err := Validate(mondayEntry(), monday, hm(10, 0), now); !errors.Is(err, ErrStartInPast) {
		t.Fatalf("expected ErrStartInPast, got %v", err)
	}
	if _, err := Validate(mondayEntry(), monday, hm(10, 30), now); err != nil {
		t.Fatalf("later today should pass: %v", err)
	}
	// 2026-03-02 is a Monday more than a month after 2026-01-26.
	far := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := Validate(mondayEntry(), far, hm(9, 0), now); !errors.Is(err, ErrDateTooFar) {
		t.Fatalf("expected ErrDateTooFar, got %v", err)
	}
	if _, err := Validate(mondayEntry(), monday, hm(23, 45), now); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestValidate_HorizonClampsAtMonthEnd(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	entryFor := func(d time.Time) *model.ScheduleEntry {
		e := mondayEntry()
		e.Weekday = d.Weekday()
		return e
	}
	cases := []struct {
		name     string
		today    time.Time
		lastOK   time.Time
		firstBad time.Time
	}{
		{"mid month", day(2027, 1, 15), day(2027, 2, 15), day(2027, 2, 16)},
		{"jan 31", day(2027, 1, 31), day(2027, 2, 28), day(2027, 3, 1)},
		{"jan 31 leap year", day(2028, 1, 31), day(2028, 2, 29), day(2028, 3, 1)},
		{"dec 31", day(2026, 12, 31), day(2027, 1, 31), day(2027, 2, 1)},
	}
	for _, tc := range cases {
		if got := Horizon(tc.today); !got.Equal(tc.lastOK) {
			t.Fatalf("%s: horizon %s, want %s", tc.name, got.Format(model.DateLayout), tc.lastOK.Format(model.DateLayout))
		}
		now := tc.today.Add(8 * time.Hour)
		if _, err := Validate(entryFor(tc.lastOK), tc.lastOK, hm(9, 0), now); err != nil {
			t.Fatalf("%s: last day should pass: %v", tc.name, err)
		}
		if _, err := Validate(entryFor(tc.firstBad), tc.firstBad, hm(9, 0), now); !errors.Is(err, ErrDateTooFar) {
			t.Fatalf("%s: expected ErrDateTooFar for %s, got %v", tc.name, tc.firstBad.Format(model.DateLayout), err)
		}
	}
}

func TestValidate_AcceptedSlotsRespectTemplate(t *testing.T) {
	entry := mondayEntry()
	now := monday.AddDate(0, 0, -1)
	for start := model.TimeOfDay(0); start+model.SlotLength <= model.EndOfDay; start += 5 {
		end, err := Validate(entry, monday, start, now)
		if err != nil {
			if !IsValidationError(err) {
				t.Fatalf("unexpected error kind for %s: %v", start, err)
			}
			continue
		}
		if end != start+30 {
			t.Fatalf("%s: end %s is not start+30m", start, end)
		}
		if start < *entry.WorkStart || end > *entry.WorkEnd {
			t.Fatalf("%s: accepted outside work hours", start)
		}
		if start < *entry.LunchEnd && end > *entry.LunchStart {
			t.Fatalf("%s: accepted over lunch", start)
		}
	}
}
