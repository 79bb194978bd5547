package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const scheduleColumns = `id, provider_id, weekday, work_start, work_end, lunch_start, lunch_end, day_off`

func scanScheduleEntry(row pgx.Row) (model.ScheduleEntry, error) {
	var (
		e                      model.ScheduleEntry
		weekday                int16
		ws, we, lunchS, lunchE *int16
	)
	if err := row.Scan(&e.ID, &e.ProviderID, &weekday, &ws, &we, &lunchS, &lunchE, &e.DayOff); err != nil {
		return model.ScheduleEntry{}, mapErr(err)
	}
	e.Weekday = time.Weekday(weekday)
	e.WorkStart, e.WorkEnd = fromNullMinute(ws), fromNullMinute(we)
	e.LunchStart, e.LunchEnd = fromNullMinute(lunchS), fromNullMinute(lunchE)
	return e, nil
}

func fromNullMinute(v *int16) *model.TimeOfDay {
	if v == nil {
		return nil
	}
	return model.Ptr(model.TimeOfDay(*v))
}

func toNullMinute(v *model.TimeOfDay) *int16 {
	if v == nil {
		return nil
	}
	m := int16(*v)
	return &m
}

func (s *txStore) GetScheduleEntry(ctx context.Context, providerID int64, weekday time.Weekday) (model.ScheduleEntry, error) {
	return scanScheduleEntry(s.tx.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule_entries
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, int16(weekday)))
}

func (s *txStore) GetScheduleEntryByID(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	return scanScheduleEntry(s.tx.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule_entries
		WHERE id = $1
	`, id))
}

func (s *txStore) ListScheduleEntries(ctx context.Context, providerID int64) ([]model.ScheduleEntry, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule_entries
		WHERE provider_id = $1
		ORDER BY weekday
	`, providerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *txStore) InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	err := s.tx.QueryRow(ctx, `
		INSERT INTO schedule_entries (provider_id, weekday, work_start, work_end, lunch_start, lunch_end, day_off)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.ProviderID, int16(e.Weekday), toNullMinute(e.WorkStart), toNullMinute(e.WorkEnd),
		toNullMinute(e.LunchStart), toNullMinute(e.LunchEnd), e.DayOff).Scan(&e.ID)
	return mapErr(err)
}

func (s *txStore) UpdateScheduleEntry(ctx context.Context, e model.ScheduleEntry) error {
	tag, err := s.tx.Exec(ctx, `
		UPDATE schedule_entries
		SET work_start = $2, work_end = $3, lunch_start = $4, lunch_end = $5, day_off = $6
		WHERE id = $1
	`, e.ID, toNullMinute(e.WorkStart), toNullMinute(e.WorkEnd),
		toNullMinute(e.LunchStart), toNullMinute(e.LunchEnd), e.DayOff)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *txStore) DeleteScheduleEntry(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
