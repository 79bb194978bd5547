package gormstore

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"gorm.io/gorm/clause"
)

var blocking = []int{int(model.StatusPending), int(model.StatusActive)}

// LockProviderDay is a no-op: the single connection already serializes
// transactions.
func (s *txStore) LockProviderDay(context.Context, int64, time.Time) error {
	return nil
}

func (s *txStore) HasOverlap(ctx context.Context, providerID int64, date time.Time, start, end model.TimeOfDay) (bool, error) {
	var n int64
	err := s.q(ctx).Model(&appointmentRow{}).
		Where("provider_id = ? AND date = ? AND status IN ?", providerID, dateKey(date), blocking).
		Where("start_minute < ? AND end_minute > ?", int(end), int(start)).
		Count(&n).Error
	return n > 0, mapErr(err)
}

func (s *txStore) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r := fromAppointment(*a)
	r.ID = 0
	if err := s.q(ctx).Create(&r).Error; err != nil {
		return mapErr(err)
	}
	a.ID = r.ID
	a.CreatedAt = fromMillis(r.CreatedAtMs)
	return nil
}

func (s *txStore) GetAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	var r appointmentRow
	if err := s.q(ctx).First(&r, id).Error; err != nil {
		return model.Appointment{}, mapErr(err)
	}
	return toAppointment(r), nil
}

func (s *txStore) GetAppointmentForUpdate(ctx context.Context, id int64) (model.Appointment, error) {
	return s.GetAppointment(ctx, id)
}

func (s *txStore) UpdateStatus(ctx context.Context, c storage.StatusChange) error {
	updates := map[string]any{"status": int(c.To)}
	if c.Reason != "" {
		updates["cancellation_reason"] = c.Reason
	}
	res := s.q(ctx).Model(&appointmentRow{}).
		Where("id = ? AND status = ?", c.ID, int(c.From)).
		Updates(updates)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := s.GetAppointment(ctx, c.ID); err != nil {
		return err
	}
	return storage.ErrStale
}

func (s *txStore) MarkReminded(ctx context.Context, id int64) error {
	res := s.q(ctx).Model(&appointmentRow{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Update("reminder_sent", true)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrStale
	}
	return nil
}

func (s *txStore) DeleteAppointment(ctx context.Context, id int64) error {
	res := s.q(ctx).Delete(&appointmentRow{}, id)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *txStore) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	q := s.q(ctx).Model(&appointmentRow{})
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.ProviderID != nil {
		q = q.Where("provider_id = ?", *f.ProviderID)
	}
	if f.DateFrom != nil {
		q = q.Where("date >= ?", dateKey(*f.DateFrom))
	}
	if f.DateTo != nil {
		q = q.Where("date <= ?", dateKey(*f.DateTo))
	}
	if f.StartFrom != nil {
		q = q.Where("start_minute >= ?", int(*f.StartFrom))
	}
	if f.StartTo != nil {
		q = q.Where("start_minute <= ?", int(*f.StartTo))
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", millis(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", millis(*f.CreatedTo))
	}
	if len(f.Statuses) > 0 {
		codes := make([]int, len(f.Statuses))
		for i, st := range f.Statuses {
			codes[i] = int(st)
		}
		q = q.Where("status IN ?", codes)
	}

	var rows []appointmentRow
	err := q.Order("date DESC, start_minute DESC, id DESC").Limit(f.EffectiveLimit()).Find(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return toAppointments(rows), nil
}

func (s *txStore) ListBlocking(ctx context.Context, providerID int64, date time.Time) ([]model.Appointment, error) {
	var rows []appointmentRow
	err := s.q(ctx).
		Where("provider_id = ? AND date = ? AND status IN ?", providerID, dateKey(date), blocking).
		Order("start_minute").
		Find(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return toAppointments(rows), nil
}

func (s *txStore) FinishCandidates(ctx context.Context, now model.DayTime, limit int) ([]model.Appointment, error) {
	day := dateKey(now.Date)
	return s.findCandidates(ctx, limit, "date, end_minute, id",
		"status = ? AND (date < ? OR (date = ? AND end_minute <= ?))",
		int(model.StatusActive), day, day, int(now.Minute))
}

func (s *txStore) ExpireCandidates(ctx context.Context, createdBefore time.Time, limit int) ([]model.Appointment, error) {
	return s.findCandidates(ctx, limit, "created_at, id",
		"status = ? AND created_at <= ?",
		int(model.StatusPending), millis(createdBefore))
}

func (s *txStore) ReminderCandidates(ctx context.Context, from, to model.DayTime, limit int) ([]model.Appointment, error) {
	fromDay, toDay := dateKey(from.Date), dateKey(to.Date)
	return s.findCandidates(ctx, limit, "date, start_minute, id",
		"status = ? AND reminder_sent = ? AND (date > ? OR (date = ? AND start_minute >= ?)) AND (date < ? OR (date = ? AND start_minute < ?))",
		int(model.StatusActive), false, fromDay, fromDay, int(from.Minute), toDay, toDay, int(to.Minute))
}

func (s *txStore) findCandidates(ctx context.Context, limit int, order string, where string, args ...any) ([]model.Appointment, error) {
	var rows []appointmentRow
	err := s.q(ctx).Where(where, args...).Order(order).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return toAppointments(rows), nil
}

func (s *txStore) StatusCountsByMonth(ctx context.Context, providerID int64, since time.Time) ([]storage.MonthStatusCount, error) {
	var rows []struct {
		Month  string
		Status int
		Count  int
	}
	err := s.q(ctx).Model(&appointmentRow{}).
		Select("strftime('%Y-%m', created_at / 1000, 'unixepoch') AS month, status, count(*) AS count").
		Where("provider_id = ? AND created_at >= ? AND status IN ?", providerID, millis(since), []int{
			int(model.StatusNotAccepted), int(model.StatusCancelledByClient),
			int(model.StatusCancelledByProvider), int(model.StatusFinished),
		}).
		Group("month, status").
		Order("month").
		Scan(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]storage.MonthStatusCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.MonthStatusCount{Month: r.Month, Status: model.Status(r.Status), Count: r.Count})
	}
	return out, nil
}

func (s *txStore) AppendOutbox(ctx context.Context, e storage.OutboxEvent) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	r := outboxRow{
		EventID:       e.EventID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		Traceparent:   e.Traceparent,
		Tracestate:    e.Tracestate,
		CreatedAtMs:   millis(created),
	}
	return mapErr(s.q(ctx).Create(&r).Error)
}

func (s *txStore) FetchUnpublished(ctx context.Context, limit int) ([]storage.OutboxEvent, error) {
	var rows []outboxRow
	if err := s.q(ctx).Where("published_at IS NULL").Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]storage.OutboxEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, toOutboxEvent(r))
	}
	return out, nil
}

func (s *txStore) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.q(ctx).Model(&outboxRow{}).Where("id IN ?", ids).Update("published_at", millis(time.Now())).Error
	return mapErr(err)
}

func (s *txStore) RecordInbox(ctx context.Context, eventID, eventType string) (bool, error) {
	r := inboxRow{EventID: eventID, EventType: eventType, ReceivedAtMs: millis(time.Now())}
	res := s.q(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r)
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}
