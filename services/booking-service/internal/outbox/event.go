// Package outbox records appointment events in the same transaction as the
// change that caused them and relays them to Kafka. The topic is the event type.
package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const (
	TypeBooked    = "booking.appointment.booked.v1"
	TypeConfirmed = "booking.appointment.confirmed.v1"
	TypeCancelled = "booking.appointment.cancelled.v1"
	TypeFinished  = "booking.appointment.finished.v1"
	TypeExpired   = "booking.appointment.expired.v1"
	TypeReminded  = "booking.appointment.reminded.v1"
	TypeDeleted   = "booking.appointment.deleted.v1"
)

// TypeForStatus names the event emitted when an appointment enters to.
func TypeForStatus(to model.Status) string {
	switch to {
	case model.StatusActive:
		return TypeConfirmed
	case model.StatusCancelledByClient, model.StatusCancelledByProvider:
		return TypeCancelled
	case model.StatusFinished:
		return TypeFinished
	case model.StatusNotAccepted:
		return TypeExpired
	default:
		return TypeBooked
	}
}

type AppointmentPayload struct {
	AppointmentID      int64           `json:"appointment_id"`
	ProviderID         *int64          `json:"provider_id"`
	ClientID           int64           `json:"client_id"`
	Date               string          `json:"date"`
	Start              model.TimeOfDay `json:"start"`
	End                model.TimeOfDay `json:"end"`
	Status             model.Status    `json:"status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	Trigger            string          `json:"trigger,omitempty"`
	ActorID            int64           `json:"actor_id,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// Meta says who or what caused an event.
type Meta struct {
	Trigger string
	ActorID int64
	At      time.Time
}

func NewAppointmentEvent(ctx context.Context, eventType string, a model.Appointment, meta Meta) (storage.OutboxEvent, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID:      a.ID,
		ProviderID:         a.ProviderID,
		ClientID:           a.ClientID,
		Date:               a.Date.Format(model.DateLayout),
		Start:              a.Start,
		End:                a.End,
		Status:             a.Status,
		CancellationReason: a.CancellationReason,
		Trigger:            meta.Trigger,
		ActorID:            meta.ActorID,
		OccurredAt:         meta.At.UTC(),
	})
	if err != nil {
		return storage.OutboxEvent{}, err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return storage.OutboxEvent{
		EventID:       uuid.NewString(),
		AggregateType: "appointment",
		AggregateID:   strconv.FormatInt(a.ID, 10),
		EventType:     eventType,
		Payload:       payload,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     meta.At.UTC(),
	}, nil
}

// Append builds the event and writes it through tx.
func Append(ctx context.Context, tx storage.Outbox, eventType string, a model.Appointment, meta Meta) error {
	evt, err := NewAppointmentEvent(ctx, eventType, a, meta)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, evt)
}
