package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

func TestDaySlots_MarksStates(t *testing.T) {
	entry := &model.ScheduleEntry{
		Weekday:    time.Monday,
		WorkStart:  model.Ptr(hm(9, 0)),
		WorkEnd:    model.Ptr(hm(11, 0)),
		LunchStart: model.Ptr(hm(10, 0)),
		LunchEnd:   model.Ptr(hm(10, 30)),
	}
	busy := []Interval{{Start: hm(10, 30), End: hm(11, 0)}}
	now := monday.Add(9*time.Hour + 10*time.Minute)

	slots := DaySlots(entry, monday, busy, now)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d: %+v", len(slots), slots)
	}
	want := []struct {
		start model.TimeOfDay
		state SlotState
	}{
		{hm(9, 0), SlotPast},
		{hm(9, 30), SlotFree},
		{hm(10, 30), SlotBooked},
	}
	for i, w := range want {
		if slots[i].Start != w.start || slots[i].State != w.state {
			t.Fatalf("slot %d: expected %s %s, got %s %s", i, w.start, w.state, slots[i].Start, slots[i].State)
		}
	}

	free := AvailableSlots(entry, monday, busy, now)
	if len(free) != 1 || free[0] != hm(9, 30) {
		t.Fatalf("expected only 09:30 free, got %v", free)
	}
}

func TestDaySlots_OffsetBusyBlocksTwoSlots(t *testing.T) {
	entry := &model.ScheduleEntry{Weekday: time.Monday, WorkStart: model.Ptr(hm(9, 0)), WorkEnd: model.Ptr(hm(10, 0))}
	busy := []Interval{{Start: hm(9, 15), End: hm(9, 45)}}
	free := AvailableSlots(entry, monday, busy, monday.AddDate(0, 0, -1))
	if len(free) != 0 {
		t.Fatalf("expected no free slots, got %v", free)
	}
	if got := DaySlots(&model.ScheduleEntry{Weekday: time.Monday, DayOff: true}, monday, nil, monday); got != nil {
		t.Fatalf("day off must have no slots, got %v", got)
	}
}
