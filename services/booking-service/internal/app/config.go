// Package app wires the booking binaries together from environment
// configuration.
package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/reconcile"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Service     string
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	AutoMigrate bool
	// Location is the single zone every wall-clock rule is evaluated in.
	Location *time.Location

	KafkaBrokers   string
	KafkaGroupID   string
	DirectoryTopic string

	Notify notify.Config

	Reconcile          reconcile.Config
	ReconcileBatchSize int
	ReconcileLockKey   int64
	ReconcileInProcess bool
}

func LoadConfig(service string) (Config, error) {
	cfg := Config{
		Service:     service,
		StoreDriver: strings.ToLower(config.String("STORE_DRIVER", DriverSQLite)),
		DatabaseURL: config.String("DATABASE_URL", ""),
		SQLitePath:  config.String("SQLITE_PATH", "clinicbook.db"),
		AutoMigrate: config.Bool("DB_AUTO_MIGRATE", true),

		KafkaBrokers:   config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:   config.String("KAFKA_GROUP_ID", "booking-service"),
		DirectoryTopic: config.String("KAFKA_DIRECTORY_TOPIC", "directory.party.changed.v1"),

		Notify: notify.ConfigFromEnv(),

		Reconcile: reconcile.Config{
			FinishEvery: config.Duration("RECONCILE_FINISH_EVERY", 30*time.Minute),
			ExpireEvery: config.Duration("RECONCILE_EXPIRE_EVERY", 30*time.Minute),
			RemindEvery: config.Duration("RECONCILE_REMIND_EVERY", 15*time.Minute),
			RetryEvery:  config.Duration("RECONCILE_RETRY_EVERY", 30*time.Second),
		},
		ReconcileBatchSize: config.Int("RECONCILE_BATCH_SIZE", 100),
		ReconcileInProcess: config.Bool("RECONCILE_IN_PROCESS", false),
	}

	loc, err := config.Location("APP_TIME_ZONE", "UTC")
	if err != nil {
		return Config{}, err
	}
	cfg.Location = loc

	lockKey, err := strconv.ParseInt(config.String("RECONCILE_LOCK_KEY", "7410"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("RECONCILE_LOCK_KEY must be an integer: %w", err)
	}
	cfg.ReconcileLockKey = lockKey

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the %s store", DriverPostgres)
		}
	case DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}
