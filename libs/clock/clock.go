// Package clock supplies "now" to code that must be testable at arbitrary
// instants. Now always reports UTC; Location is the zone wall-clock dates and
// times are interpreted in.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Local is the clock's current instant expressed in its location.
func Local(c Clock) time.Time {
	return c.Now().In(c.Location())
}

type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{loc: loc}
}

func (s System) Now() time.Time { return time.Now().UTC() }

func (s System) Location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewFixed(now time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{now: now.UTC(), loc: loc}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location { return f.loc }

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Snapshot freezes a clock reading so several computations in one run agree.
type Snapshot struct {
	UTC   time.Time
	Local time.Time
}

func Take(c Clock) Snapshot {
	now := c.Now()
	return Snapshot{UTC: now, Local: now.In(c.Location())}
}
