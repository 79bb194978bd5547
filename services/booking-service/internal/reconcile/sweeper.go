// Package reconcile advances appointments whose state depends on the wall
// clock: elapsed appointments finish, stale requests expire, and upcoming
// appointments get a reminder. Every sweep is idempotent.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const (
	// PendingTTL is how long a request may wait for the provider's answer.
	PendingTTL = 24 * time.Hour
	// ReminderLead and ReminderWindow bound reminder starts to [now+1h, now+2h).
	ReminderLead   = time.Hour
	ReminderWindow = time.Hour

	trigger = "reconcile"
)

var ErrReminderFailed = errors.New("reminder delivery failed")

type Sweeper struct {
	store     storage.Store
	notifier  notify.Notifier
	logger    *slog.Logger
	batchSize int
}

func NewSweeper(store storage.Store, notifier notify.Notifier, logger *slog.Logger, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{store: store, notifier: notifier, logger: logger, batchSize: batchSize}
}

// FinishElapsed moves Active appointments whose local end has passed to Finished.
func (s *Sweeper) FinishElapsed(ctx context.Context, now clock.Snapshot) (int, error) {
	cutoff := model.DayTimeOf(now.Local)
	return s.transitionAll(ctx, lifecycle.EventFinish, now.UTC, func(ctx context.Context, tx storage.Tx) ([]model.Appointment, error) {
		return tx.FinishCandidates(ctx, cutoff, s.batchSize)
	})
}

// ExpirePending moves Pending appointments created PendingTTL or longer ago to NotAccepted.
func (s *Sweeper) ExpirePending(ctx context.Context, now clock.Snapshot) (int, error) {
	createdBefore := now.UTC.Add(-PendingTTL)
	return s.transitionAll(ctx, lifecycle.EventExpire, now.UTC, func(ctx context.Context, tx storage.Tx) ([]model.Appointment, error) {
		return tx.ExpireCandidates(ctx, createdBefore, s.batchSize)
	})
}

type candidateFunc func(ctx context.Context, tx storage.Tx) ([]model.Appointment, error)

// transitionAll applies ev to candidates batch by batch, one transaction per
// batch, until a batch comes back short.
func (s *Sweeper) transitionAll(ctx context.Context, ev lifecycle.Event, at time.Time, candidates candidateFunc) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		changed, fetched := 0, 0
		err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			changed = 0
			batch, err := candidates(ctx, tx)
			if err != nil {
				return err
			}
			fetched = len(batch)
			for _, a := range batch {
				ok, err := transition(ctx, tx, a, ev, at)
				if err != nil {
					return fmt.Errorf("appointment %d: %w", a.ID, err)
				}
				if ok {
					changed++
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += changed
		if fetched < s.batchSize || changed == 0 {
			return total, nil
		}
	}
}

// transition reports false when the row already moved on, which a
// concurrent actor or sweep may have done.
func transition(ctx context.Context, tx storage.Tx, a model.Appointment, ev lifecycle.Event, at time.Time) (bool, error) {
	next, err := lifecycle.Apply(a.Status, ev)
	if err != nil {
		return false, nil
	}
	err = tx.UpdateStatus(ctx, storage.StatusChange{ID: a.ID, From: a.Status, To: next})
	if errors.Is(err, storage.ErrStale) || errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.Status = next
	if err := outbox.Append(ctx, tx, outbox.TypeForStatus(next), a, outbox.Meta{Trigger: trigger, At: at}); err != nil {
		return false, err
	}
	return true, nil
}

// SendReminders notifies clients of Active appointments starting within the
// reminder window and flags them. A batch is sent and flagged in one
// transaction; a failed delivery rolls the batch back and stops the sweep, so
// every reminder is delivered at least once but may repeat after a failure.
func (s *Sweeper) SendReminders(ctx context.Context, now clock.Snapshot) (int, error) {
	from := model.DayTimeOf(now.Local.Add(ReminderLead))
	to := model.DayTimeOf(now.Local.Add(ReminderLead + ReminderWindow))

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sent, fetched := 0, 0
		err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			sent = 0
			batch, err := tx.ReminderCandidates(ctx, from, to, s.batchSize)
			if err != nil {
				return err
			}
			fetched = len(batch)
			for _, a := range batch {
				if err := s.remind(ctx, tx, a, now.UTC); err != nil {
					return err
				}
				sent++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += sent
		if fetched < s.batchSize {
			return total, nil
		}
	}
}

func (s *Sweeper) remind(ctx context.Context, tx storage.Tx, a model.Appointment, at time.Time) error {
	email, providerName, err := participants(ctx, tx, a)
	if err != nil {
		return err
	}
	if email != "" {
		msg := notify.Reminder(a, providerName)
		if !s.notifier.Send(ctx, email, msg.Subject, msg.Body) {
			return fmt.Errorf("%w: appointment %d", ErrReminderFailed, a.ID)
		}
	} else {
		s.logger.Warn("reminder skipped: client has no address", "appointment_id", a.ID, "client_id", a.ClientID)
	}
	if err := tx.MarkReminded(ctx, a.ID); err != nil {
		return err
	}
	a.ReminderSent = true
	return outbox.Append(ctx, tx, outbox.TypeReminded, a, outbox.Meta{Trigger: trigger, At: at})
}

func participants(ctx context.Context, tx storage.Parties, a model.Appointment) (email, providerName string, err error) {
	c, err := tx.GetClient(ctx, a.ClientID)
	switch {
	case err == nil:
		if !c.Deleted {
			email = c.Email
		}
	case !errors.Is(err, storage.ErrNotFound):
		return "", "", err
	}
	if a.ProviderID != nil {
		p, err := tx.GetProvider(ctx, *a.ProviderID)
		switch {
		case err == nil:
			providerName = p.Name
		case !errors.Is(err, storage.ErrNotFound):
			return "", "", err
		}
	}
	return email, providerName, nil
}
