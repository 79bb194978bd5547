// Package storage defines the transactional store the booking engine runs on.
// pgstore (Postgres) and gormstore (SQLite) implement it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrStale is returned by conditional updates whose precondition no longer holds.
	ErrStale = errors.New("row changed concurrently")
)

type Store interface {
	// WithTx runs fn in one transaction, committing when fn returns nil.
	// fn must use only the Tx it is given.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

type Tx interface {
	Parties
	Schedules
	Appointments
	Outbox
	Inbox
}

type Parties interface {
	GetClient(ctx context.Context, id int64) (model.Client, error)
	GetProvider(ctx context.Context, id int64) (model.Provider, error)
	UpsertClient(ctx context.Context, c model.Client) error
	UpsertProvider(ctx context.Context, p model.Provider) error
	// DetachProvider clears provider_id on the provider's appointments and
	// returns how many rows changed.
	DetachProvider(ctx context.Context, providerID int64) (int64, error)
}

type Schedules interface {
	GetScheduleEntry(ctx context.Context, providerID int64, weekday time.Weekday) (model.ScheduleEntry, error)
	GetScheduleEntryByID(ctx context.Context, id int64) (model.ScheduleEntry, error)
	ListScheduleEntries(ctx context.Context, providerID int64) ([]model.ScheduleEntry, error)
	// InsertScheduleEntry sets e.ID. A duplicate (provider, weekday) is ErrConflict.
	InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error
	UpdateScheduleEntry(ctx context.Context, e model.ScheduleEntry) error
	DeleteScheduleEntry(ctx context.Context, id int64) error
}

type Appointments interface {
	// LockProviderDay serializes bookings for one provider and date until the
	// transaction ends.
	LockProviderDay(ctx context.Context, providerID int64, date time.Time) error
	HasOverlap(ctx context.Context, providerID int64, date time.Time, start, end model.TimeOfDay) (bool, error)
	// InsertAppointment sets a.ID and a.CreatedAt when zero.
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id int64) (model.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id int64) (model.Appointment, error)
	UpdateStatus(ctx context.Context, change StatusChange) error
	MarkReminded(ctx context.Context, id int64) error
	DeleteAppointment(ctx context.Context, id int64) error
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
	// ListBlocking returns the provider's pending and active appointments on date.
	ListBlocking(ctx context.Context, providerID int64, date time.Time) ([]model.Appointment, error)

	FinishCandidates(ctx context.Context, now model.DayTime, limit int) ([]model.Appointment, error)
	ExpireCandidates(ctx context.Context, createdBefore time.Time, limit int) ([]model.Appointment, error)
	ReminderCandidates(ctx context.Context, from, to model.DayTime, limit int) ([]model.Appointment, error)

	StatusCountsByMonth(ctx context.Context, providerID int64, since time.Time) ([]MonthStatusCount, error)
}

// StatusChange moves one appointment from From to To. It fails with ErrStale
// when the stored status is no longer From.
type StatusChange struct {
	ID     int64
	From   model.Status
	To     model.Status
	Reason string
}

type AppointmentFilter struct {
	ClientID    *int64
	ProviderID  *int64
	DateFrom    *time.Time
	DateTo      *time.Time
	StartFrom   *model.TimeOfDay
	StartTo     *model.TimeOfDay
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Statuses    []model.Status
	Limit       int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

func (f AppointmentFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// MonthStatusCount is one row of StatusCountsByMonth. Month is "YYYY-MM".
type MonthStatusCount struct {
	Month  string
	Status model.Status
	Count  int
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

type Outbox interface {
	AppendOutbox(ctx context.Context, e OutboxEvent) error
	// FetchUnpublished returns the oldest unpublished events, locked for this
	// transaction where the backend supports it.
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

type Inbox interface {
	// RecordInbox returns false when eventID was already recorded.
	RecordInbox(ctx context.Context, eventID, eventType string) (bool, error)
}
