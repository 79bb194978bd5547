package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/gormstore"
)

var (
	admin    = auth.Actor{ID: 1, Role: auth.RoleAdmin}
	provider = auth.Actor{ID: 7, Role: auth.RoleProvider}
	stranger = auth.Actor{ID: 8, Role: auth.RoleProvider}
)

func newService(t *testing.T) (*Service, *gormstore.Store) {
	t.Helper()
	store, err := gormstore.Open(context.Background(), filepath.Join(t.TempDir(), "schedule.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.UpsertProvider(ctx, model.Provider{ID: provider.ID, Name: "Dr. Seven", Email: "seven@example.com", Active: true})
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	return NewService(store), store
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	n, err := svc.SeedDefaults(ctx, provider, provider.ID)
	if err != nil || n != 7 {
		t.Fatalf("expected 7 entries, got %d err=%v", n, err)
	}
	n, err = svc.SeedDefaults(ctx, admin, provider.ID)
	if err != nil || n != 0 {
		t.Fatalf("expected reseed to be a no-op, got %d err=%v", n, err)
	}

	entries, err := svc.List(ctx, provider.ID)
	if err != nil || len(entries) != 7 {
		t.Fatalf("expected 7 entries, got %d err=%v", len(entries), err)
	}
	for _, e := range entries {
		weekend := e.Weekday == time.Saturday || e.Weekday == time.Sunday
		if e.DayOff != weekend {
			t.Fatalf("%s: unexpected day off %v", e.Weekday, e.DayOff)
		}
		if !weekend && (*e.WorkStart != model.NewTimeOfDay(9, 0) || *e.LunchEnd != model.NewTimeOfDay(14, 0)) {
			t.Fatalf("%s: unexpected hours %+v", e.Weekday, e)
		}
	}
}

func TestSeedDefaults_KeepsExistingEntries(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	custom := model.ScheduleEntry{ProviderID: provider.ID, Weekday: time.Monday, DayOff: true}
	if _, err := svc.Create(ctx, provider, custom); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := svc.SeedDefaults(ctx, provider, provider.ID)
	if err != nil || n != 6 {
		t.Fatalf("expected 6 new entries, got %d err=%v", n, err)
	}
	entries, _ := svc.List(ctx, provider.ID)
	for _, e := range entries {
		if e.Weekday == time.Monday && !e.DayOff {
			t.Fatalf("seed overwrote the custom Monday entry")
		}
	}
}

func TestCreate_Rules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	entry := model.ScheduleEntry{
		ProviderID: provider.ID,
		Weekday:    time.Tuesday,
		WorkStart:  model.Ptr(model.NewTimeOfDay(8, 0)),
		WorkEnd:    model.Ptr(model.NewTimeOfDay(12, 0)),
	}
	if _, err := svc.Create(ctx, stranger, entry); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	created, err := svc.Create(ctx, provider, entry)
	if err != nil || created.ID == 0 {
		t.Fatalf("create: %+v err=%v", created, err)
	}
	if _, err := svc.Create(ctx, admin, entry); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate weekday, got %v", err)
	}

	bad := entry
	bad.Weekday = time.Wednesday
	bad.LunchStart = model.Ptr(model.NewTimeOfDay(8, 0))
	bad.LunchEnd = model.Ptr(model.NewTimeOfDay(9, 0))
	if _, err := svc.Create(ctx, provider, bad); !errors.Is(err, model.ErrInvalidSchedule) {
		t.Fatalf("expected lunch at work start to be rejected, got %v", err)
	}

	missing := entry
	missing.ProviderID = 99
	if _, err := svc.Create(ctx, admin, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown provider, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.SeedDefaults(ctx, admin, provider.ID); err != nil {
		t.Fatalf("seed: %v", err)
	}
	entries, _ := svc.List(ctx, provider.ID)
	var friday model.ScheduleEntry
	for _, e := range entries {
		if e.Weekday == time.Friday {
			friday = e
		}
	}

	withHours := model.ScheduleEntry{ID: friday.ID, DayOff: true, WorkStart: model.Ptr(model.NewTimeOfDay(9, 0))}
	if _, err := svc.Update(ctx, provider, withHours); !errors.Is(err, model.ErrInvalidSchedule) {
		t.Fatalf("expected day off with hours to be rejected, got %v", err)
	}
	if _, err := svc.Update(ctx, stranger, model.ScheduleEntry{ID: friday.ID, DayOff: true}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := svc.Update(ctx, provider, model.ScheduleEntry{ID: friday.ID, Weekday: time.Monday, DayOff: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Weekday != time.Friday || updated.ProviderID != provider.ID {
		t.Fatalf("update must keep provider and weekday, got %+v", updated)
	}
	got, err := svc.Get(ctx, friday.ID)
	if err != nil || !got.DayOff || got.WorkStart != nil || got.LunchStart != nil {
		t.Fatalf("expected stored day off without hours, got %+v err=%v", got, err)
	}

	if err := svc.Delete(ctx, stranger, friday.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, admin, friday.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, friday.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
