package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("APP_TIME_ZONE", "")
	t.Setenv("RECONCILE_REMIND_EVERY", "5m")

	cfg, err := LoadConfig("booking-service")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.Location != time.UTC {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Reconcile.RemindEvery != 5*time.Minute || cfg.Reconcile.FinishEvery != 30*time.Minute {
		t.Fatalf("unexpected cadences %+v", cfg.Reconcile)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_DRIVER": "postgres", "DATABASE_URL": ""},
		"unknown driver":       {"STORE_DRIVER": "mysql"},
		"unknown zone":         {"APP_TIME_ZONE": "Mars/Olympus"},
		"bad lock key":         {"RECONCILE_LOCK_KEY": "leader"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig("booking-service"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{
		StoreDriver: DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "app.db"),
		AutoMigrate: true,
		Location:    time.UTC,
	}
	s, err := OpenStore(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, ok := s.Elector.(reconcile.SingleInstance); !ok {
		t.Fatalf("sqlite must run as a single instance, got %T", s.Elector)
	}
	if err := s.ReadyCheck().Check(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
	err = s.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.UpsertProvider(ctx, model.Provider{ID: 1, Name: "P", Active: true})
	})
	if err != nil {
		t.Fatalf("write after migrate: %v", err)
	}

	runner := NewReconciler(cfg, s, clock.NewFixed(time.Date(2026, 1, 26, 12, 0, 0, 0, time.UTC), time.UTC), notify.New(notify.NewRecorder(), logger), logger)
	counts, err := runner.RunOnce(context.Background(), reconcile.SweepAll)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for name, n := range counts {
		if n != 0 {
			t.Fatalf("empty store swept %d rows in %s", n, name)
		}
	}
}
