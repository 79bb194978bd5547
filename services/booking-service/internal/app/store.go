package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/gormstore"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/pgstore"
)

// Store is an opened storage backend together with what the binaries need
// around it.
type Store struct {
	storage.Store
	Driver  string
	Elector reconcile.Elector

	migrate func(context.Context) ([]string, error)
	close   func()
}

// OpenStore opens the configured backend and, when AutoMigrate is set,
// brings its schema up to date.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	var s *Store
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := pgstore.New(pool)
		s = &Store{
			Store:   pg,
			Driver:  DriverPostgres,
			Elector: pg.AdvisoryLock(cfg.ReconcileLockKey),
			migrate: pg.Migrate,
			close:   pool.Close,
		}
	default:
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		gs := gormstore.New(gdb)
		s = &Store{
			Store:   gs,
			Driver:  DriverSQLite,
			Elector: reconcile.SingleInstance{},
			migrate: func(ctx context.Context) ([]string, error) {
				if err := gs.Migrate(ctx); err != nil {
					return nil, err
				}
				return []string{"automigrate"}, nil
			},
			close: func() { _ = gs.Close() },
		}
	}

	if cfg.AutoMigrate {
		applied, err := s.Migrate(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("schema migrated", "driver", s.Driver, "applied", applied)
		}
	}
	return s, nil
}

// Migrate applies pending schema changes and returns what it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	applied, err := s.migrate(ctx)
	if err != nil {
		return applied, fmt.Errorf("migrate %s: %w", s.Driver, err)
	}
	return applied, nil
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *Store) ReadyCheck() runtime.ReadyCheck {
	return runtime.ReadyCheck{Name: "db", Check: s.Ping}
}

// NewReconciler builds the sweep runner used by the reconciler binary, the
// in-process mode and bookingctl.
func NewReconciler(cfg Config, s *Store, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger) *reconcile.Runner {
	sweeper := reconcile.NewSweeper(s, notifier, logger, cfg.ReconcileBatchSize)
	return reconcile.NewRunner(sweeper, clk, s.Elector, logger, cfg.Reconcile)
}
