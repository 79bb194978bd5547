package clock

import (
	"testing"
	"time"
)

func TestFixedClock_LocalAndAdvance(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	c := NewFixed(time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC), loc)

	local := Local(c)
	if local.Hour() != 9 {
		t.Fatalf("expected 09:00 local, got %s", local.Format(time.RFC3339))
	}
	if c.Now().Location() != time.UTC {
		t.Fatalf("Now must report UTC")
	}

	c.Advance(90 * time.Minute)
	snap := Take(c)
	if snap.Local.Hour() != 10 || snap.Local.Minute() != 30 {
		t.Fatalf("expected 10:30 local, got %s", snap.Local.Format(time.RFC3339))
	}
	if !snap.UTC.Equal(snap.Local) {
		t.Fatalf("snapshot readings must be the same instant")
	}
}

func TestSystemClock_DefaultsToUTC(t *testing.T) {
	var s System
	if s.Location() != time.UTC {
		t.Fatalf("zero System should use UTC")
	}
}
