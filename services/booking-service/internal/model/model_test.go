package model

import (
	"errors"
	"testing"
	"time"
)

func TestStatusText(t *testing.T) {
	for s := StatusPending; s <= StatusFinished; s++ {
		raw, err := s.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", s, err)
		}
		var back Status
		if err := back.UnmarshalText(raw); err != nil || back != s {
			t.Fatalf("round trip %s: got %v err=%v", raw, back, err)
		}
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatalf("expected unknown status error")
	}
	if StatusPending.Terminal() || StatusActive.Terminal() || !StatusNotAccepted.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	if err != nil || got != 570 {
		t.Fatalf("expected 570, got %d err=%v", got, err)
	}
	if got.String() != "09:30" {
		t.Fatalf("expected 09:30, got %s", got)
	}
	for _, bad := range []string{"9:30", "24:30", "12:60", "noon", "-1:00", "09:5x", " 9:30", "09:3 ", "+9:30", "09-30", ""} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if end, err := ParseTimeOfDay("24:00"); err != nil || end != EndOfDay {
		t.Fatalf("expected end of day, got %d err=%v", end, err)
	}
}

func TestDayTimeOrdering(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	late := DayTimeOf(time.Date(2026, 3, 1, 23, 30, 0, 0, loc))
	early := DayTimeOf(time.Date(2026, 3, 2, 0, 15, 0, 0, loc))
	if !late.Before(early) || early.Before(late) {
		t.Fatalf("expected %s before %s", late, early)
	}
	if late.Date != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected local calendar date, got %s", late.Date)
	}
}

func TestScheduleEntryValidate(t *testing.T) {
	ok := ScheduleEntry{Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1080), LunchStart: Ptr(720), LunchEnd: Ptr(780)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid entry: %v", err)
	}

	cases := map[string]ScheduleEntry{
		"day off with hours":   {Weekday: time.Sunday, DayOff: true, WorkStart: Ptr(480)},
		"missing work end":     {Weekday: time.Monday, WorkStart: Ptr(480)},
		"end before start":     {Weekday: time.Monday, WorkStart: Ptr(600), WorkEnd: Ptr(600)},
		"half lunch":           {Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1080), LunchStart: Ptr(720)},
		"lunch touches start":  {Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1080), LunchStart: Ptr(480), LunchEnd: Ptr(540)},
		"lunch reversed":       {Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1080), LunchStart: Ptr(780), LunchEnd: Ptr(720)},
		"lunch past work end":  {Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1080), LunchStart: Ptr(1020), LunchEnd: Ptr(1080)},
		"weekday out of range": {Weekday: 7, DayOff: true},
		"time beyond midnight": {Weekday: time.Monday, WorkStart: Ptr(480), WorkEnd: Ptr(1500)},
	}
	for name, entry := range cases {
		if err := entry.Validate(); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("%s: expected ErrInvalidSchedule, got %v", name, err)
		}
	}
}
