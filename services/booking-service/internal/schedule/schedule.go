// Package schedule manages providers' weekly availability templates.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

var (
	ErrNotFound  = errors.New("schedule entry not found")
	ErrForbidden = errors.New("not allowed to edit this schedule")
	ErrConflict  = errors.New("schedule entry already exists for this weekday")
)

type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func canEdit(actor auth.Actor, providerID int64) bool {
	return actor.Role == auth.RoleAdmin || (actor.Role == auth.RoleProvider && actor.ID == providerID)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}

func (s *Service) List(ctx context.Context, providerID int64) ([]model.ScheduleEntry, error) {
	var out []model.ScheduleEntry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListScheduleEntries(ctx, providerID)
		return err
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	var out model.ScheduleEntry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.GetScheduleEntryByID(ctx, id)
		return err
	})
	return out, mapErr(err)
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, e model.ScheduleEntry) (model.ScheduleEntry, error) {
	if !canEdit(actor, e.ProviderID) {
		return model.ScheduleEntry{}, ErrForbidden
	}
	if err := e.Validate(); err != nil {
		return model.ScheduleEntry{}, err
	}
	e.ID = 0
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetProvider(ctx, e.ProviderID); err != nil {
			return err
		}
		return tx.InsertScheduleEntry(ctx, &e)
	})
	if err != nil {
		return model.ScheduleEntry{}, mapErr(err)
	}
	return e, nil
}

// Update replaces the hours of an existing entry. Provider and weekday are
// taken from the stored entry.
func (s *Service) Update(ctx context.Context, actor auth.Actor, e model.ScheduleEntry) (model.ScheduleEntry, error) {
	var out model.ScheduleEntry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.GetScheduleEntryByID(ctx, e.ID)
		if err != nil {
			return err
		}
		if !canEdit(actor, current.ProviderID) {
			return ErrForbidden
		}
		e.ProviderID = current.ProviderID
		e.Weekday = current.Weekday
		if err := e.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateScheduleEntry(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, mapErr(err)
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.GetScheduleEntryByID(ctx, id)
		if err != nil {
			return err
		}
		if !canEdit(actor, current.ProviderID) {
			return ErrForbidden
		}
		return tx.DeleteScheduleEntry(ctx, id)
	})
	return mapErr(err)
}

// SeedDefaults fills in the default week for weekdays the provider has no
// entry for and returns how many entries it created.
func (s *Service) SeedDefaults(ctx context.Context, actor auth.Actor, providerID int64) (int, error) {
	if !canEdit(actor, providerID) {
		return 0, ErrForbidden
	}
	var created int
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetProvider(ctx, providerID); err != nil {
			return err
		}
		var err error
		created, err = Seed(ctx, tx, providerID)
		return err
	})
	return created, mapErr(err)
}

var (
	defaultWorkStart  = model.NewTimeOfDay(9, 0)
	defaultWorkEnd    = model.NewTimeOfDay(18, 0)
	defaultLunchStart = model.NewTimeOfDay(13, 0)
	defaultLunchEnd   = model.NewTimeOfDay(14, 0)
)

// DefaultEntry is the onboarding template: Monday to Friday 09:00-18:00 with
// lunch 13:00-14:00, weekends off.
func DefaultEntry(providerID int64, weekday time.Weekday) model.ScheduleEntry {
	e := model.ScheduleEntry{ProviderID: providerID, Weekday: weekday}
	if weekday == time.Saturday || weekday == time.Sunday {
		e.DayOff = true
		return e
	}
	e.WorkStart = model.Ptr(defaultWorkStart)
	e.WorkEnd = model.Ptr(defaultWorkEnd)
	e.LunchStart = model.Ptr(defaultLunchStart)
	e.LunchEnd = model.Ptr(defaultLunchEnd)
	return e
}

// Seed inserts DefaultEntry for every weekday missing an entry. Existing
// entries are left untouched, so it is safe to run repeatedly.
func Seed(ctx context.Context, tx storage.Schedules, providerID int64) (int, error) {
	created := 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		_, err := tx.GetScheduleEntry(ctx, providerID, wd)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return created, err
		}
		e := DefaultEntry(providerID, wd)
		if err := tx.InsertScheduleEntry(ctx, &e); err != nil {
			return created, fmt.Errorf("seed %s: %w", wd, err)
		}
		created++
	}
	return created, nil
}
