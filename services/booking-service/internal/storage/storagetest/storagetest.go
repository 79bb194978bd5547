// Package storagetest holds the behaviour every storage.Store must share.
// Each backend runs Run against a fresh, empty store per case.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

// Outbox event ids are UUIDs in Postgres.
const (
	eventA = "0b6a3c1e-5d47-4f0e-9a4e-1f7f2c9b8a01"
	eventB = "0b6a3c1e-5d47-4f0e-9a4e-1f7f2c9b8a02"
)

// Run executes every case as a subtest. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"Parties_UpsertAndDetach", partiesUpsertAndDetach},
		{"Schedules_CRUD", schedulesCRUD},
		{"Appointments_OverlapIgnoresClosedStatuses", appointmentsOverlapIgnoresClosedStatuses},
		{"Appointments_ConditionalUpdate", appointmentsConditionalUpdate},
		{"Appointments_ListFilters", appointmentsListFilters},
		{"SweepCandidates", sweepCandidates},
		{"StatusCountsByMonth", statusCountsByMonth},
		{"OutboxAndInbox", outboxAndInbox},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func inTx(t *testing.T, s storage.Store, fn func(ctx context.Context, tx storage.Tx) error) {
	t.Helper()
	if err := s.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func insertAppt(t *testing.T, s storage.Store, a model.Appointment) model.Appointment {
	t.Helper()
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAppointment(ctx, &a)
	})
	return a
}

func providerPtr(id int64) *int64 { return &id }

func partiesUpsertAndDetach(t *testing.T, s storage.Store) {
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.UpsertProvider(ctx, model.Provider{ID: 7, Name: "Dr Who", Email: "who@example.com", Active: true}); err != nil {
			return err
		}
		return tx.UpsertProvider(ctx, model.Provider{ID: 7, Name: "Dr Who", Email: "who@example.com", Active: false})
	})
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetProvider(ctx, 7)
		if err != nil {
			return err
		}
		if p.Active {
			t.Fatalf("expected upsert to store active=false")
		}
		if _, err := tx.GetClient(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		return nil
	})

	a := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(7), ClientID: 1, Date: day(2026, 2, 2), Start: 540, End: 570})
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.DetachProvider(ctx, 7)
		if err != nil || n != 1 {
			t.Fatalf("expected one detached row, got %d err=%v", n, err)
		}
		got, err := tx.GetAppointment(ctx, a.ID)
		if err != nil {
			return err
		}
		if got.ProviderID != nil {
			t.Fatalf("expected provider to be cleared")
		}
		return nil
	})
}

func schedulesCRUD(t *testing.T, s storage.Store) {
	entry := model.ScheduleEntry{ProviderID: 1, Weekday: time.Monday, WorkStart: model.Ptr(480), WorkEnd: model.Ptr(1080), LunchStart: model.Ptr(720), LunchEnd: model.Ptr(780)}
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertScheduleEntry(ctx, &entry)
	})
	if entry.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	err := s.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		dup := model.ScheduleEntry{ProviderID: 1, Weekday: time.Monday, DayOff: true}
		return tx.InsertScheduleEntry(ctx, &dup)
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate weekday, got %v", err)
	}

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		off := model.ScheduleEntry{ID: entry.ID, DayOff: true}
		if err := tx.UpdateScheduleEntry(ctx, off); err != nil {
			return err
		}
		got, err := tx.GetScheduleEntry(ctx, 1, time.Monday)
		if err != nil {
			return err
		}
		if !got.DayOff || got.WorkStart != nil || got.LunchEnd != nil {
			t.Fatalf("expected cleared day off entry, got %+v", got)
		}
		if err := tx.DeleteScheduleEntry(ctx, entry.ID); err != nil {
			return err
		}
		if err := tx.DeleteScheduleEntry(ctx, entry.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		return nil
	})
}

func appointmentsOverlapIgnoresClosedStatuses(t *testing.T, s storage.Store) {
	d := day(2026, 2, 3)
	a := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: d, Start: 540, End: 570})

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		busy, err := tx.HasOverlap(ctx, 1, d, 555, 585)
		if err != nil || !busy {
			t.Fatalf("expected overlap, got %v err=%v", busy, err)
		}
		busy, _ = tx.HasOverlap(ctx, 1, d, 570, 600)
		if busy {
			t.Fatalf("adjacent slot must not overlap")
		}
		busy, _ = tx.HasOverlap(ctx, 2, d, 540, 570)
		if busy {
			t.Fatalf("other provider must not overlap")
		}
		return tx.UpdateStatus(ctx, storage.StatusChange{ID: a.ID, From: model.StatusPending, To: model.StatusNotAccepted})
	})
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		busy, err := tx.HasOverlap(ctx, 1, d, 540, 570)
		if err != nil || busy {
			t.Fatalf("not accepted appointment must free its slot, got %v err=%v", busy, err)
		}
		return nil
	})
}

func appointmentsConditionalUpdate(t *testing.T, s storage.Store) {
	a := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 2, 3), Start: 540, End: 570})

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		return tx.UpdateStatus(ctx, storage.StatusChange{ID: a.ID, From: model.StatusPending, To: model.StatusCancelledByProvider, Reason: "sick"})
	})
	err := s.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.UpdateStatus(ctx, storage.StatusChange{ID: a.ID, From: model.StatusPending, To: model.StatusActive})
	})
	if !errors.Is(err, storage.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	err = s.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.UpdateStatus(ctx, storage.StatusChange{ID: 404, From: model.StatusPending, To: model.StatusActive})
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetAppointment(ctx, a.ID)
		if err != nil {
			return err
		}
		if got.Status != model.StatusCancelledByProvider || got.CancellationReason != "sick" {
			t.Fatalf("unexpected appointment %+v", got)
		}
		return nil
	})
}

func appointmentsListFilters(t *testing.T, s storage.Store) {
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 2, 1), Start: 540, End: 570, CreatedAt: base})
	insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 2, Date: day(2026, 2, 2), Start: 600, End: 630, CreatedAt: base.Add(time.Hour)})
	insertAppt(t, s, model.Appointment{ProviderID: providerPtr(2), ClientID: 1, Date: day(2026, 2, 3), Start: 660, End: 690, CreatedAt: base.Add(2 * time.Hour), Status: model.StatusActive})

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		client := int64(1)
		got, err := tx.ListAppointments(ctx, storage.AppointmentFilter{ClientID: &client})
		if err != nil {
			return err
		}
		if len(got) != 2 || !got[0].Date.Equal(day(2026, 2, 3)) {
			t.Fatalf("expected client's two appointments newest first, got %+v", got)
		}

		from, to := day(2026, 2, 2), day(2026, 2, 3)
		got, _ = tx.ListAppointments(ctx, storage.AppointmentFilter{DateFrom: &from, DateTo: &to, Statuses: []model.Status{model.StatusActive}})
		if len(got) != 1 || got[0].Start != 660 {
			t.Fatalf("expected one active appointment, got %+v", got)
		}

		startFrom := model.TimeOfDay(600)
		createdTo := base.Add(time.Hour)
		got, _ = tx.ListAppointments(ctx, storage.AppointmentFilter{StartFrom: &startFrom, CreatedTo: &createdTo})
		if len(got) != 1 || got[0].ClientID != 2 {
			t.Fatalf("expected client 2's appointment, got %+v", got)
		}

		got, _ = tx.ListAppointments(ctx, storage.AppointmentFilter{Limit: 1})
		if len(got) != 1 {
			t.Fatalf("expected limit to apply, got %d", len(got))
		}
		return nil
	})
}

func sweepCandidates(t *testing.T, s storage.Store) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	elapsed := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 3, 2), Start: 540, End: 570, Status: model.StatusActive, CreatedAt: created})
	later := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 3, 2), Start: 600, End: 630, Status: model.StatusActive, CreatedAt: created})
	yesterday := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 3, 1), Start: 1380, End: 1410, Status: model.StatusActive, CreatedAt: created})
	nextDay := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 3, 3), Start: 30, End: 60, Status: model.StatusActive, CreatedAt: created})
	stale := insertAppt(t, s, model.Appointment{ProviderID: providerPtr(2), ClientID: 1, Date: day(2026, 3, 5), Start: 540, End: 570, CreatedAt: created})

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.FinishCandidates(ctx, model.DayTime{Date: day(2026, 3, 2), Minute: 570}, 10)
		if err != nil {
			return err
		}
		if len(got) != 2 || got[0].ID != yesterday.ID || got[1].ID != elapsed.ID {
			t.Fatalf("expected yesterday's and the 09:30 appointment, got %+v", got)
		}
		for _, a := range got {
			if a.ID == later.ID {
				t.Fatalf("10:30 end must not be finished at 09:30")
			}
		}

		// Window 23:45 on the 2nd to 00:45 on the 3rd crosses midnight.
		got, err = tx.ReminderCandidates(ctx,
			model.DayTime{Date: day(2026, 3, 2), Minute: 1425},
			model.DayTime{Date: day(2026, 3, 3), Minute: 45}, 10)
		if err != nil {
			return err
		}
		if len(got) != 1 || got[0].ID != nextDay.ID {
			t.Fatalf("expected the 00:30 appointment, got %+v", got)
		}

		got, err = tx.ExpireCandidates(ctx, created.Add(24*time.Hour), 10)
		if err != nil {
			return err
		}
		if len(got) != 1 || got[0].ID != stale.ID {
			t.Fatalf("expected the pending appointment, got %+v", got)
		}
		got, _ = tx.ExpireCandidates(ctx, created.Add(-time.Minute), 10)
		if len(got) != 0 {
			t.Fatalf("nothing was created before the cutoff, got %+v", got)
		}

		if err := tx.MarkReminded(ctx, nextDay.ID); err != nil {
			return err
		}
		if err := tx.MarkReminded(ctx, nextDay.ID); !errors.Is(err, storage.ErrStale) {
			t.Fatalf("expected ErrStale on second reminder flag, got %v", err)
		}
		return nil
	})
}

func statusCountsByMonth(t *testing.T, s storage.Store) {
	jan := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	for _, a := range []model.Appointment{
		{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 1, 20), Start: 540, End: 570, CreatedAt: jan, Status: model.StatusFinished},
		{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 1, 21), Start: 540, End: 570, CreatedAt: jan, Status: model.StatusFinished},
		{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 2, 20), Start: 540, End: 570, CreatedAt: feb, Status: model.StatusCancelledByClient},
		{ProviderID: providerPtr(1), ClientID: 1, Date: day(2026, 2, 21), Start: 540, End: 570, CreatedAt: feb, Status: model.StatusActive},
		{ProviderID: providerPtr(2), ClientID: 1, Date: day(2026, 2, 21), Start: 540, End: 570, CreatedAt: feb, Status: model.StatusFinished},
	} {
		insertAppt(t, s, a)
	}

	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.StatusCountsByMonth(ctx, 1, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		if len(got) != 2 {
			t.Fatalf("expected two month/status rows, got %+v", got)
		}
		if got[0].Month != "2026-01" || got[0].Status != model.StatusFinished || got[0].Count != 2 {
			t.Fatalf("unexpected january row %+v", got[0])
		}
		if got[1].Month != "2026-02" || got[1].Status != model.StatusCancelledByClient || got[1].Count != 1 {
			t.Fatalf("unexpected february row %+v", got[1])
		}
		return nil
	})
}

func outboxAndInbox(t *testing.T, s storage.Store) {
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		for _, id := range []string{eventA, eventB} {
			if err := tx.AppendOutbox(ctx, storage.OutboxEvent{EventID: id, AggregateType: "appointment", AggregateID: "1", EventType: "booking.appointment.booked.v1", Payload: []byte(`{}`)}); err != nil {
				return err
			}
		}
		return nil
	})
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		events, err := tx.FetchUnpublished(ctx, 10)
		if err != nil {
			return err
		}
		if len(events) != 2 || events[0].EventID != eventA {
			t.Fatalf("expected two events in order, got %+v", events)
		}
		return tx.MarkPublished(ctx, []int64{events[0].ID})
	})
	inTx(t, s, func(ctx context.Context, tx storage.Tx) error {
		events, _ := tx.FetchUnpublished(ctx, 10)
		if len(events) != 1 || events[0].EventID != eventB {
			t.Fatalf("expected only the second event left, got %+v", events)
		}
		first, err := tx.RecordInbox(ctx, "evt-1", "directory.party.changed.v1")
		if err != nil || !first {
			t.Fatalf("expected first record, got %v err=%v", first, err)
		}
		again, err := tx.RecordInbox(ctx, "evt-1", "directory.party.changed.v1")
		if err != nil || again {
			t.Fatalf("expected duplicate to be reported, got %v err=%v", again, err)
		}
		return nil
	})
}
