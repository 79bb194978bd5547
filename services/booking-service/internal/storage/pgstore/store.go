// Package pgstore is the Postgres implementation of storage.Store.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return db.NewMigrator(s.pool, Migrations()).Up(ctx)
}

// AdvisoryLock is a session-level Postgres lock used to elect one reconciler.
type AdvisoryLock struct {
	pool *db.Pool
	key  int64
}

func (s *Store) AdvisoryLock(key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: s.pool, key: key}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, func(), error) {
	return l.pool.TryAdvisoryLock(ctx, l.key)
}

type txStore struct {
	tx pgx.Tx
}

var _ storage.Tx = (*txStore)(nil)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	switch db.PgErrorCode(err) {
	case "23505", "23P01":
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}
