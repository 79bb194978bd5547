package gormstore

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

// Timestamps are stored as unix milliseconds and dates as YYYY-MM-DD text so
// that SQLite compares both correctly.

type clientRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement:false"`
	Name    string `gorm:"not null"`
	Email   string `gorm:"not null"`
	Deleted bool   `gorm:"not null"`
}

func (clientRow) TableName() string { return "clients" }

type providerRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement:false"`
	Name    string `gorm:"not null"`
	Email   string `gorm:"not null"`
	Active  bool   `gorm:"not null"`
	Deleted bool   `gorm:"not null"`
}

func (providerRow) TableName() string { return "providers" }

type scheduleRow struct {
	ID         int64 `gorm:"primaryKey"`
	ProviderID int64 `gorm:"not null;uniqueIndex:schedule_provider_weekday"`
	Weekday    int   `gorm:"not null;uniqueIndex:schedule_provider_weekday"`
	WorkStart  *int
	WorkEnd    *int
	LunchStart *int
	LunchEnd   *int
	DayOff     bool `gorm:"not null"`
}

func (scheduleRow) TableName() string { return "schedule_entries" }

type appointmentRow struct {
	ID                 int64  `gorm:"primaryKey"`
	ProviderID         *int64 `gorm:"index:appointments_provider_date"`
	ClientID           int64  `gorm:"not null;index"`
	Date               string `gorm:"not null;index:appointments_provider_date;index:appointments_status_date"`
	StartMinute        int    `gorm:"not null"`
	EndMinute          int    `gorm:"not null"`
	CreatedAtMs        int64  `gorm:"column:created_at;not null;index:appointments_status_created"`
	Status             int    `gorm:"not null;index:appointments_status_created;index:appointments_status_date"`
	CancellationReason *string
	ReminderSent       bool `gorm:"not null"`
}

func (appointmentRow) TableName() string { return "appointments" }

type outboxRow struct {
	ID            int64  `gorm:"primaryKey"`
	EventID       string `gorm:"not null;uniqueIndex"`
	AggregateType string `gorm:"not null"`
	AggregateID   string `gorm:"not null"`
	EventType     string `gorm:"not null"`
	Payload       []byte `gorm:"not null"`
	Traceparent   string `gorm:"not null"`
	Tracestate    string `gorm:"not null"`
	CreatedAtMs   int64  `gorm:"column:created_at;not null"`
	PublishedAtMs *int64 `gorm:"column:published_at;index"`
}

func (outboxRow) TableName() string { return "outbox_events" }

type inboxRow struct {
	EventID      string `gorm:"primaryKey"`
	EventType    string `gorm:"not null"`
	ReceivedAtMs int64  `gorm:"column:received_at;not null"`
}

func (inboxRow) TableName() string { return "inbox_events" }

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func dateKey(d time.Time) string { return d.Format(model.DateLayout) }

func toAppointment(r appointmentRow) model.Appointment {
	d, _ := time.Parse(model.DateLayout, r.Date)
	a := model.Appointment{
		ID:           r.ID,
		ProviderID:   r.ProviderID,
		ClientID:     r.ClientID,
		Date:         d,
		Start:        model.TimeOfDay(r.StartMinute),
		End:          model.TimeOfDay(r.EndMinute),
		CreatedAt:    fromMillis(r.CreatedAtMs),
		Status:       model.Status(r.Status),
		ReminderSent: r.ReminderSent,
	}
	if r.CancellationReason != nil {
		a.CancellationReason = *r.CancellationReason
	}
	return a
}

func toAppointments(rows []appointmentRow) []model.Appointment {
	out := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAppointment(r))
	}
	return out
}

func fromAppointment(a model.Appointment) appointmentRow {
	r := appointmentRow{
		ID:           a.ID,
		ProviderID:   a.ProviderID,
		ClientID:     a.ClientID,
		Date:         dateKey(a.Date),
		StartMinute:  int(a.Start),
		EndMinute:    int(a.End),
		CreatedAtMs:  millis(a.CreatedAt),
		Status:       int(a.Status),
		ReminderSent: a.ReminderSent,
	}
	if a.CancellationReason != "" {
		reason := a.CancellationReason
		r.CancellationReason = &reason
	}
	return r
}

func toScheduleEntry(r scheduleRow) model.ScheduleEntry {
	return model.ScheduleEntry{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		Weekday:    time.Weekday(r.Weekday),
		WorkStart:  fromNullMinute(r.WorkStart),
		WorkEnd:    fromNullMinute(r.WorkEnd),
		LunchStart: fromNullMinute(r.LunchStart),
		LunchEnd:   fromNullMinute(r.LunchEnd),
		DayOff:     r.DayOff,
	}
}

func fromNullMinute(v *int) *model.TimeOfDay {
	if v == nil {
		return nil
	}
	return model.Ptr(model.TimeOfDay(*v))
}

func toNullMinute(v *model.TimeOfDay) *int {
	if v == nil {
		return nil
	}
	m := int(*v)
	return &m
}

func toOutboxEvent(r outboxRow) storage.OutboxEvent {
	return storage.OutboxEvent{
		ID:            r.ID,
		EventID:       r.EventID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Payload:       r.Payload,
		Traceparent:   r.Traceparent,
		Tracestate:    r.Tracestate,
		CreatedAt:     fromMillis(r.CreatedAtMs),
	}
}
