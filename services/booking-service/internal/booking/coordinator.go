// Package booking runs the booking and actor-driven lifecycle operations of
// the engine. Every operation is one store transaction; notifications go out
// after commit and never affect the outcome.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

type Coordinator struct {
	store    storage.Store
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewCoordinator(store storage.Store, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, clock: clk, notifier: notifier, logger: logger}
}

// recipient is who gets told about a change, resolved inside the transaction.
type recipient struct {
	email        string
	providerName string
}

// Book creates a Pending appointment for clientID.
func (c *Coordinator) Book(ctx context.Context, clientID, providerID int64, date time.Time, start model.TimeOfDay) (model.Appointment, error) {
	return c.book(ctx, "client", clientID, clientID, providerID, date, start)
}

// BookOnBehalf books for clientID on an admin's request, or a provider's for
// their own calendar. The slot is validated exactly as in Book.
func (c *Coordinator) BookOnBehalf(ctx context.Context, actor auth.Actor, clientID, providerID int64, date time.Time, start model.TimeOfDay) (model.Appointment, error) {
	switch {
	case actor.Role == auth.RoleAdmin:
	case actor.Role == auth.RoleProvider && actor.ID == providerID:
	default:
		metrics.BookingsTotal.WithLabelValues(string(actor.Role), outcome(ErrForbidden)).Inc()
		return model.Appointment{}, ErrForbidden
	}
	return c.book(ctx, string(actor.Role), actor.ID, clientID, providerID, date, start)
}

func (c *Coordinator) book(ctx context.Context, kind string, actorID, clientID, providerID int64, date time.Time, start model.TimeOfDay) (model.Appointment, error) {
	now := clock.Take(c.clock)
	date = model.DateOf(date)

	var (
		appt model.Appointment
		to   recipient
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		client, err := tx.GetClient(ctx, clientID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && client.Deleted) {
			return fmt.Errorf("%w: client %d", ErrNotFound, clientID)
		}
		if err != nil {
			return err
		}
		provider, err := tx.GetProvider(ctx, providerID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && provider.Deleted) {
			return fmt.Errorf("%w: provider %d", ErrNotFound, providerID)
		}
		if err != nil {
			return err
		}
		if !provider.Active {
			return ErrProviderUnavailable
		}

		var entry *model.ScheduleEntry
		e, err := tx.GetScheduleEntry(ctx, providerID, date.Weekday())
		switch {
		case err == nil:
			entry = &e
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		end, err := availability.Validate(entry, date, start, now.Local)
		if err != nil {
			return err
		}

		if err := tx.LockProviderDay(ctx, providerID, date); err != nil {
			return err
		}
		taken, err := tx.HasOverlap(ctx, providerID, date, start, end)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		appt = model.Appointment{
			ProviderID: &providerID,
			ClientID:   clientID,
			Date:       date,
			Start:      start,
			End:        end,
			CreatedAt:  now.UTC,
			Status:     model.StatusPending,
		}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrSlotTaken
			}
			return err
		}
		to = recipient{email: client.Email, providerName: provider.Name}
		return outbox.Append(ctx, tx, outbox.TypeBooked, appt, outbox.Meta{Trigger: kind, ActorID: actorID, At: now.UTC})
	})
	err = classify(err)
	metrics.BookingsTotal.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, ErrTransactionFailed) {
			c.logger.Error("booking failed", "err", err, "client_id", clientID, "provider_id", providerID)
		}
		return model.Appointment{}, err
	}

	c.logger.Info("appointment booked", "appointment_id", appt.ID, "client_id", clientID, "provider_id", providerID,
		"date", appt.Date.Format(model.DateLayout), "start", appt.Start.String(), "by", kind)
	msg := notify.Booked(appt, to.providerName)
	c.notifier.Send(ctx, to.email, msg.Subject, msg.Body)
	return appt, nil
}

// Confirm accepts a Pending appointment. Only its provider may confirm.
func (c *Coordinator) Confirm(ctx context.Context, actor auth.Actor, id int64) (model.Appointment, error) {
	return c.transition(ctx, actor, id, lifecycle.EventConfirm, "", func(a model.Appointment) error {
		if actor.Role != auth.RoleProvider || !a.OwnedByProvider(actor.ID) {
			return ErrForbidden
		}
		return nil
	})
}

// CancelByProvider cancels with a reason. Admins may cancel on the provider's behalf.
func (c *Coordinator) CancelByProvider(ctx context.Context, actor auth.Actor, id int64, reason string) (model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Appointment{}, ErrReasonRequired
	}
	return c.transition(ctx, actor, id, lifecycle.EventCancelByProvider, reason, func(a model.Appointment) error {
		if actor.Role == auth.RoleAdmin {
			return nil
		}
		if actor.Role != auth.RoleProvider || !a.OwnedByProvider(actor.ID) {
			return ErrForbidden
		}
		return nil
	})
}

func (c *Coordinator) CancelByClient(ctx context.Context, actor auth.Actor, id int64) (model.Appointment, error) {
	return c.transition(ctx, actor, id, lifecycle.EventCancelByClient, "", func(a model.Appointment) error {
		if actor.Role != auth.RoleClient || a.ClientID != actor.ID {
			return ErrForbidden
		}
		return nil
	})
}

func (c *Coordinator) transition(ctx context.Context, actor auth.Actor, id int64, ev lifecycle.Event, reason string, authorize func(model.Appointment) error) (model.Appointment, error) {
	now := c.clock.Now()
	var (
		appt model.Appointment
		from model.Status
		to   recipient
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(a); err != nil {
			return err
		}
		next, err := lifecycle.Apply(a.Status, ev)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, storage.StatusChange{ID: a.ID, From: a.Status, To: next, Reason: reason}); err != nil {
			return err
		}
		from = a.Status
		a.Status = next
		if reason != "" {
			a.CancellationReason = reason
		}
		appt = a

		to, err = resolveRecipient(ctx, tx, a)
		if err != nil {
			return err
		}
		return outbox.Append(ctx, tx, outbox.TypeForStatus(next), a, outbox.Meta{Trigger: string(actor.Role), ActorID: actor.ID, At: now})
	})
	if err = classify(err); err != nil {
		return model.Appointment{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(from.String(), appt.Status.String(), string(actor.Role)).Inc()
	c.logger.Info("appointment status changed", "appointment_id", appt.ID, "from", from.String(), "to", appt.Status.String(),
		"actor_id", actor.ID, "role", string(actor.Role))

	var msg notify.Message
	if ev == lifecycle.EventConfirm {
		msg = notify.Confirmed(appt, to.providerName)
	} else {
		msg = notify.Cancelled(appt, to.providerName)
	}
	c.notifier.Send(ctx, to.email, msg.Subject, msg.Body)
	return appt, nil
}

// resolveRecipient looks up the client's address and the provider's name.
// Missing parties yield empty values, which the notifier skips.
func resolveRecipient(ctx context.Context, tx storage.Parties, a model.Appointment) (recipient, error) {
	var r recipient
	client, err := tx.GetClient(ctx, a.ClientID)
	switch {
	case err == nil:
		if !client.Deleted {
			r.email = client.Email
		}
	case !errors.Is(err, storage.ErrNotFound):
		return r, err
	}
	if a.ProviderID != nil {
		provider, err := tx.GetProvider(ctx, *a.ProviderID)
		switch {
		case err == nil:
			r.providerName = provider.Name
		case !errors.Is(err, storage.ErrNotFound):
			return r, err
		}
	}
	return r, nil
}

// Delete removes a terminal appointment. Admin only.
func (c *Coordinator) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if actor.Role != auth.RoleAdmin {
		return ErrForbidden
	}
	now := c.clock.Now()
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.Terminal() {
			return fmt.Errorf("%w: %s appointments cannot be deleted", ErrInvalidState, a.Status)
		}
		if err := tx.DeleteAppointment(ctx, id); err != nil {
			return err
		}
		return outbox.Append(ctx, tx, outbox.TypeDeleted, a, outbox.Meta{Trigger: string(actor.Role), ActorID: actor.ID, At: now})
	})
	if err = classify(err); err != nil {
		return err
	}
	c.logger.Info("appointment deleted", "appointment_id", id, "actor_id", actor.ID)
	return nil
}
