package pgstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/storagetest"
)

func TestMigrationsEmbedded(t *testing.T) {
	migs, err := db.LoadMigrations(Migrations())
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("expected 0001 migration first, got %+v", migs)
	}
	raw, err := fs.ReadFile(Migrations(), migs[0].Name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"appointments", "schedule_entries", "outbox_events", "inbox_events", "clients", "providers"} {
		if !strings.Contains(string(raw), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("migration does not create %s", table)
		}
	}
}

func TestMapErr(t *testing.T) {
	if !errors.Is(mapErr(pgx.ErrNoRows), storage.ErrNotFound) {
		t.Fatalf("ErrNoRows should map to ErrNotFound")
	}
	for _, code := range []string{"23505", "23P01"} {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: code})
		if !errors.Is(mapErr(err), storage.ErrConflict) {
			t.Fatalf("%s should map to ErrConflict", code)
		}
	}
	other := errors.New("boom")
	if mapErr(other) != other {
		t.Fatalf("unrelated errors must pass through")
	}
	if mapErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

// TestStore runs the shared store cases against a real database. Point
// DATABASE_URL at a disposable database; every case truncates all tables.
func TestStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	s := New(pool)
	if _, err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		if _, err := pool.Exec(ctx, `
			TRUNCATE appointments, schedule_entries, clients, providers, outbox_events, inbox_events
			RESTART IDENTITY
		`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestStore_ExclusionRejectsOverlap(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	defer pool.Close()
	s := New(pool)
	if _, err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE appointments RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	provider := int64(1)
	date := model.DateOf(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	insert := func(start model.TimeOfDay) error {
		return s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			a := model.Appointment{ProviderID: &provider, ClientID: 1, Date: date, Start: start, End: start + model.SlotLength}
			return tx.InsertAppointment(ctx, &a)
		})
	}
	if err := insert(540); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(555); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict from the exclusion constraint, got %v", err)
	}
	if err := insert(570); err != nil {
		t.Fatalf("adjacent slot should insert: %v", err)
	}
}
