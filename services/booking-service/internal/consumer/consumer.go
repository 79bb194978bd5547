// Package consumer keeps the local copy of clients and providers in sync with
// directory events published by the identity side of the platform.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TopicPartyChanged = "directory.party.changed.v1"

const (
	PartyClient   = "client"
	PartyProvider = "provider"

	ActionUpsert = "upsert"
	ActionDelete = "delete"
	ActionPurge  = "purge"
)

var ErrBadEvent = errors.New("malformed directory event")

// PartyChanged is the payload of directory.party.changed.v1.
type PartyChanged struct {
	Party  string `json:"party"`
	Action string `json:"action"`
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active *bool  `json:"active,omitempty"`
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader MessageReader
	store  storage.Store
	logger *slog.Logger
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewReader(cfg Config) *kafka.Reader {
	topic := cfg.Topic
	if topic == "" {
		topic = TopicPartyChanged
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func New(reader MessageReader, store storage.Store, logger *slog.Logger) *Consumer {
	return &Consumer{reader: reader, store: store, logger: logger}
}

// Run fetches, applies and commits messages until ctx ends. A message is
// committed only after it was applied or rejected as malformed, so transient
// store failures are retried on the next fetch.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		if err := c.Handle(ctx, msg); err != nil && !errors.Is(err, ErrBadEvent) {
			c.logger.Error("directory event failed", "err", err, "offset", msg.Offset)
			time.Sleep(1 * time.Second)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err)
		}
	}
}

// Handle applies one message. The inbox record and the party change share a
// transaction, so a redelivered event is applied at most once.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("kafka").Start(ctx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	var evt PartyChanged
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return c.reject(span, meta, fmt.Errorf("%w: %v", ErrBadEvent, err))
	}
	if err := evt.validate(); err != nil {
		return c.reject(span, meta, err)
	}

	duplicate := false
	err := c.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		fresh, err := tx.RecordInbox(ctx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}
		return apply(ctx, tx, evt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ConsumedTotal.WithLabelValues("error").Inc()
		return err
	}
	if duplicate {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		metrics.ConsumedTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	c.logger.Info("directory event applied", "event_id", meta.EventID, "party", evt.Party, "action", evt.Action, "id", evt.ID)
	metrics.ConsumedTotal.WithLabelValues("applied").Inc()
	return nil
}

func (c *Consumer) reject(span trace.Span, meta kafkax.EventMeta, err error) error {
	c.logger.Warn("directory event rejected", "err", err, "event_id", meta.EventID)
	span.RecordError(err)
	metrics.ConsumedTotal.WithLabelValues("rejected").Inc()
	return err
}

func (e PartyChanged) validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: id is required", ErrBadEvent)
	}
	switch e.Party {
	case PartyClient, PartyProvider:
	default:
		return fmt.Errorf("%w: unknown party %q", ErrBadEvent, e.Party)
	}
	switch e.Action {
	case ActionUpsert, ActionDelete, ActionPurge:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadEvent, e.Action)
	}
	return nil
}

func apply(ctx context.Context, tx storage.Tx, evt PartyChanged) error {
	if evt.Party == PartyClient {
		return applyClient(ctx, tx, evt)
	}
	return applyProvider(ctx, tx, evt)
}

func applyClient(ctx context.Context, tx storage.Tx, evt PartyChanged) error {
	c := model.Client{ID: evt.ID, Name: evt.Name, Email: evt.Email}
	if evt.Action != ActionUpsert {
		current, err := tx.GetClient(ctx, evt.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		c = current
		c.Deleted = true
	}
	return tx.UpsertClient(ctx, c)
}

// applyProvider seeds the default week for a newly upserted provider. Purging
// keeps the provider's appointments but detaches them from the provider.
func applyProvider(ctx context.Context, tx storage.Tx, evt PartyChanged) error {
	if evt.Action == ActionUpsert {
		p := model.Provider{ID: evt.ID, Name: evt.Name, Email: evt.Email, Active: true}
		if evt.Active != nil {
			p.Active = *evt.Active
		}
		if err := tx.UpsertProvider(ctx, p); err != nil {
			return err
		}
		_, err := schedule.Seed(ctx, tx, evt.ID)
		return err
	}

	current, err := tx.GetProvider(ctx, evt.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	current.Deleted = true
	current.Active = false
	if err := tx.UpsertProvider(ctx, current); err != nil {
		return err
	}
	if evt.Action == ActionPurge {
		if _, err := tx.DetachProvider(ctx, evt.ID); err != nil {
			return err
		}
	}
	return nil
}
