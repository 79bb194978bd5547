package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/gormstore"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctl.db")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("NOTIFY_PROVIDER", "log")
	t.Setenv("APP_TIME_ZONE", "UTC")
	return path
}

func TestMigrateAndSeed(t *testing.T) {
	path := useSQLite(t)

	out, err := run(t, "migrate")
	if err != nil || !strings.Contains(out, "applied") {
		t.Fatalf("migrate: %q %v", out, err)
	}

	if _, err := run(t, "seed-schedule", "--provider", "5"); err == nil {
		t.Fatalf("seeding an unknown provider must fail")
	}

	store, err := gormstore.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.UpsertProvider(ctx, model.Provider{ID: 5, Name: "P", Active: true})
	})
	_ = store.Close()
	if err != nil {
		t.Fatalf("insert provider: %v", err)
	}

	out, err = run(t, "seed-schedule", "--provider", "5")
	if err != nil || !strings.Contains(out, "created 7 entries") {
		t.Fatalf("seed: %q %v", out, err)
	}
	out, err = run(t, "seed-schedule", "--provider", "5")
	if err != nil || !strings.Contains(out, "created 0 entries") {
		t.Fatalf("reseed: %q %v", out, err)
	}
}

func TestSweep(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "sweep", "all")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if out != "expire: 0\nfinish: 0\nremind: 0\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := run(t, "sweep", "everything"); err == nil {
		t.Fatalf("expected unknown sweep to be rejected")
	}
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "ctl-secret")

	out, err := run(t, "token", "--subject", "42", "--role", "provider")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.NewVerifier("ctl-secret", nil).Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "provider" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := run(t, "token", "--subject", "42", "--role", "owner"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}
