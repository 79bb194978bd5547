package pgstore

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

func (s *txStore) GetClient(ctx context.Context, id int64) (model.Client, error) {
	var c model.Client
	err := s.tx.QueryRow(ctx, `
		SELECT id, name, email, deleted
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Deleted)
	return c, mapErr(err)
}

func (s *txStore) GetProvider(ctx context.Context, id int64) (model.Provider, error) {
	var p model.Provider
	err := s.tx.QueryRow(ctx, `
		SELECT id, name, email, active, deleted
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.Active, &p.Deleted)
	return p, mapErr(err)
}

func (s *txStore) UpsertClient(ctx context.Context, c model.Client) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO clients (id, name, email, deleted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			email = EXCLUDED.email,
			deleted = EXCLUDED.deleted,
			updated_at = now()
	`, c.ID, c.Name, c.Email, c.Deleted)
	return mapErr(err)
}

func (s *txStore) UpsertProvider(ctx context.Context, p model.Provider) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO providers (id, name, email, active, deleted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			email = EXCLUDED.email,
			active = EXCLUDED.active,
			deleted = EXCLUDED.deleted,
			updated_at = now()
	`, p.ID, p.Name, p.Email, p.Active, p.Deleted)
	return mapErr(err)
}

func (s *txStore) DetachProvider(ctx context.Context, providerID int64) (int64, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE appointments SET provider_id = NULL WHERE provider_id = $1`, providerID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
