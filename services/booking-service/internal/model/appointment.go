package model

import (
	"fmt"
	"strings"
	"time"
)

// SlotLength is the fixed length of every appointment.
const SlotLength TimeOfDay = 30

type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusNotAccepted
	StatusCancelledByClient
	StatusCancelledByProvider
	StatusFinished
)

var statusNames = [...]string{
	StatusPending:             "pending",
	StatusActive:              "active",
	StatusNotAccepted:         "not_accepted",
	StatusCancelledByClient:   "cancelled_by_client",
	StatusCancelledByProvider: "cancelled_by_provider",
	StatusFinished:            "finished",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusFinished
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusActive
}

func ParseStatus(raw string) (Status, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for i, name := range statusNames {
		if name == raw {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", raw)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// BlockingStatuses occupy their slot. Everything else frees it.
var BlockingStatuses = []Status{StatusPending, StatusActive}

type Appointment struct {
	ID                 int64
	ProviderID         *int64
	ClientID           int64
	Date               time.Time
	Start              TimeOfDay
	End                TimeOfDay
	CreatedAt          time.Time
	Status             Status
	CancellationReason string
	ReminderSent       bool
}

// StartsAt returns the wall-clock start in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Start.On(a.Date, loc)
}

func (a Appointment) EndsAt(loc *time.Location) time.Time {
	return a.End.On(a.Date, loc)
}

// OwnedByProvider is false for appointments whose provider was purged.
func (a Appointment) OwnedByProvider(providerID int64) bool {
	return a.ProviderID != nil && *a.ProviderID == providerID
}
