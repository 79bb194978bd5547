package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const appointmentColumns = `id, provider_id, client_id, date, start_minute, end_minute,
	created_at, status, COALESCE(cancellation_reason, ''), reminder_sent`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a          model.Appointment
		start, end int16
		status     int16
	)
	err := row.Scan(&a.ID, &a.ProviderID, &a.ClientID, &a.Date, &start, &end,
		&a.CreatedAt, &status, &a.CancellationReason, &a.ReminderSent)
	if err != nil {
		return model.Appointment{}, mapErr(err)
	}
	a.Start, a.End = model.TimeOfDay(start), model.TimeOfDay(end)
	a.Status = model.Status(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.Date = model.DateOf(a.Date)
	return a, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]model.Appointment, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *txStore) LockProviderDay(ctx context.Context, providerID int64, date time.Time) error {
	key := fmt.Sprintf("appt:%d:%s", providerID, date.Format(model.DateLayout))
	_, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return mapErr(err)
}

func (s *txStore) HasOverlap(ctx context.Context, providerID int64, date time.Time, start, end model.TimeOfDay) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE provider_id = $1
				AND date = $2
				AND status IN (0, 1)
				AND start_minute < $4
				AND end_minute > $3
		)
	`, providerID, date, int16(start), int16(end)).Scan(&exists)
	return exists, mapErr(err)
}

func (s *txStore) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := s.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(provider_id, client_id, date, start_minute, end_minute, created_at, status, cancellation_reason, reminder_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id
	`, a.ProviderID, a.ClientID, a.Date, int16(a.Start), int16(a.End), a.CreatedAt,
		int16(a.Status), a.CancellationReason, a.ReminderSent).Scan(&a.ID)
	return mapErr(err)
}

func (s *txStore) GetAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	return scanAppointment(s.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

func (s *txStore) GetAppointmentForUpdate(ctx context.Context, id int64) (model.Appointment, error) {
	return scanAppointment(s.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (s *txStore) UpdateStatus(ctx context.Context, c storage.StatusChange) error {
	tag, err := s.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			cancellation_reason = COALESCE(NULLIF($4, ''), cancellation_reason)
		WHERE id = $1 AND status = $2
	`, c.ID, int16(c.From), int16(c.To), c.Reason)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetAppointment(ctx, c.ID); err != nil {
		return err
	}
	return storage.ErrStale
}

func (s *txStore) MarkReminded(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true
		WHERE id = $1 AND NOT reminder_sent
	`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrStale
	}
	return nil
}

func (s *txStore) DeleteAppointment(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *txStore) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID != nil {
		add("client_id = $%d", *f.ClientID)
	}
	if f.ProviderID != nil {
		add("provider_id = $%d", *f.ProviderID)
	}
	if f.DateFrom != nil {
		add("date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("date <= $%d", *f.DateTo)
	}
	if f.StartFrom != nil {
		add("start_minute >= $%d", int16(*f.StartFrom))
	}
	if f.StartTo != nil {
		add("start_minute <= $%d", int16(*f.StartTo))
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}
	if len(f.Statuses) > 0 {
		codes := make([]int16, len(f.Statuses))
		for i, st := range f.Statuses {
			codes[i] = int16(st)
		}
		add("status = ANY($%d)", codes)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY date DESC, start_minute DESC, id DESC LIMIT $%d`, len(args))

	return collectAppointments(s.tx.Query(ctx, query, args...))
}

func (s *txStore) ListBlocking(ctx context.Context, providerID int64, date time.Time) ([]model.Appointment, error) {
	return collectAppointments(s.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND status IN (0, 1)
		ORDER BY start_minute
	`, providerID, date))
}

func (s *txStore) FinishCandidates(ctx context.Context, now model.DayTime, limit int) ([]model.Appointment, error) {
	return collectAppointments(s.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 1
			AND (date < $1 OR (date = $1 AND end_minute <= $2))
		ORDER BY date, end_minute, id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, now.Date, int16(now.Minute), limit))
}

func (s *txStore) ExpireCandidates(ctx context.Context, createdBefore time.Time, limit int) ([]model.Appointment, error) {
	return collectAppointments(s.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 0 AND created_at <= $1
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, createdBefore, limit))
}

func (s *txStore) ReminderCandidates(ctx context.Context, from, to model.DayTime, limit int) ([]model.Appointment, error) {
	return collectAppointments(s.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 1
			AND NOT reminder_sent
			AND (date > $1 OR (date = $1 AND start_minute >= $2))
			AND (date < $3 OR (date = $3 AND start_minute < $4))
		ORDER BY date, start_minute, id
		LIMIT $5
		FOR UPDATE SKIP LOCKED
	`, from.Date, int16(from.Minute), to.Date, int16(to.Minute), limit))
}

func (s *txStore) StatusCountsByMonth(ctx context.Context, providerID int64, since time.Time) ([]storage.MonthStatusCount, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, status, count(*)
		FROM appointments
		WHERE provider_id = $1 AND created_at >= $2 AND status IN (2, 3, 4, 5)
		GROUP BY month, status
		ORDER BY month
	`, providerID, since)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []storage.MonthStatusCount
	for rows.Next() {
		var (
			c      storage.MonthStatusCount
			status int16
		)
		if err := rows.Scan(&c.Month, &status, &c.Count); err != nil {
			return nil, err
		}
		c.Status = model.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
