package pgstore

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

func (s *txStore) AppendOutbox(ctx context.Context, e storage.OutboxEvent) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.EventID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.Traceparent, e.Tracestate)
	return mapErr(err)
}

func (s *txStore) FetchUnpublished(ctx context.Context, limit int) ([]storage.OutboxEvent, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []storage.OutboxEvent
	for rows.Next() {
		var e storage.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType,
			&e.Payload, &e.Traceparent, &e.Tracestate, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *txStore) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return mapErr(err)
}

func (s *txStore) RecordInbox(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := s.tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
