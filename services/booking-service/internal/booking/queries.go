package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

// StatsMonths is how many calendar months Stats covers, current month included.
const StatsMonths = 12

func canSee(actor auth.Actor, a model.Appointment) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleClient:
		return a.ClientID == actor.ID
	case auth.RoleProvider:
		return a.OwnedByProvider(actor.ID)
	}
	return false
}

func (c *Coordinator) Get(ctx context.Context, actor auth.Actor, id int64) (model.Appointment, error) {
	var appt model.Appointment
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		appt, err = tx.GetAppointment(ctx, id)
		return err
	})
	if err = classify(err); err != nil {
		return model.Appointment{}, err
	}
	if !canSee(actor, appt) {
		return model.Appointment{}, ErrForbidden
	}
	return appt, nil
}

// List returns appointments matching f, newest date and start first. Clients
// and providers only ever see their own appointments.
func (c *Coordinator) List(ctx context.Context, actor auth.Actor, f storage.AppointmentFilter) ([]model.Appointment, error) {
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	switch actor.Role {
	case auth.RoleClient:
		f.ClientID = &actor.ID
	case auth.RoleProvider:
		f.ProviderID = &actor.ID
	case auth.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	var out []model.Appointment
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListAppointments(ctx, f)
		return err
	})
	return out, classify(err)
}

func ValidateFilter(f storage.AppointmentFilter) error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: date_from is after date_to", ErrInvalidFilter)
	}
	if f.StartFrom != nil && f.StartTo != nil && *f.StartFrom > *f.StartTo {
		return fmt.Errorf("%w: start_from is after start_to", ErrInvalidFilter)
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return fmt.Errorf("%w: created_from is after created_to", ErrInvalidFilter)
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return fmt.Errorf("%w: unknown status %d", ErrInvalidFilter, int(st))
		}
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}

// Timetable lays out the provider's working day on date in slots, marking
// each free, booked or past. A day off yields no slots.
func (c *Coordinator) Timetable(ctx context.Context, providerID int64, date time.Time) ([]availability.Slot, error) {
	date = model.DateOf(date)
	var (
		entry *model.ScheduleEntry
		busy  []availability.Interval
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetProvider(ctx, providerID)
		if err != nil {
			return err
		}
		if p.Deleted {
			return ErrNotFound
		}
		e, err := tx.GetScheduleEntry(ctx, providerID, date.Weekday())
		switch {
		case err == nil:
			entry = &e
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		appts, err := tx.ListBlocking(ctx, providerID, date)
		if err != nil {
			return err
		}
		for _, a := range appts {
			busy = append(busy, availability.Interval{Start: a.Start, End: a.End})
		}
		return nil
	})
	if err = classify(err); err != nil {
		return nil, err
	}
	slots := availability.DaySlots(entry, date, busy, clock.Local(c.clock))
	if slots == nil {
		slots = []availability.Slot{}
	}
	return slots, nil
}

// Stats counts the provider's closed appointments per creation month (UTC)
// for the last StatsMonths months, oldest first, with empty months zeroed.
func (c *Coordinator) Stats(ctx context.Context, actor auth.Actor, providerID int64) ([]model.MonthStats, error) {
	if actor.Role != auth.RoleAdmin && !(actor.Role == auth.RoleProvider && actor.ID == providerID) {
		return nil, ErrForbidden
	}
	now := c.clock.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(StatsMonths - 1), 0)

	var counts []storage.MonthStatusCount
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetProvider(ctx, providerID); err != nil {
			return err
		}
		var err error
		counts, err = tx.StatusCountsByMonth(ctx, providerID, first)
		return err
	})
	if err = classify(err); err != nil {
		return nil, err
	}

	out := make([]model.MonthStats, StatsMonths)
	index := make(map[string]int, StatsMonths)
	for i := range out {
		m := first.AddDate(0, i, 0)
		out[i].Month = m
		index[m.Format("2006-01")] = i
	}
	for _, row := range counts {
		i, ok := index[row.Month]
		if !ok {
			continue
		}
		switch row.Status {
		case model.StatusFinished:
			out[i].Finished += row.Count
		case model.StatusNotAccepted:
			out[i].NotAccepted += row.Count
		case model.StatusCancelledByClient:
			out[i].CancelledByClient += row.Count
		case model.StatusCancelledByProvider:
			out[i].CancelledByProvider += row.Count
		}
	}
	return out, nil
}
