package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLite_ErrorOnMissingDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "app.db")
	if gdb, err := OpenSQLite(bad); err == nil || gdb != nil {
		t.Fatalf("expected error for %q", bad)
	}
}

func TestOpenSQLite_SingleConnectionAndPragmas(t *testing.T) {
	gdb, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = CloseSQLite(gdb) })

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("DB(): %v", err)
	}
	if max := sqlDB.Stats().MaxOpenConnections; max != 1 {
		t.Fatalf("expected 1 open connection, got %d", max)
	}

	var fk int
	if err := gdb.Raw("PRAGMA foreign_keys;").Row().Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
	if err := SQLiteReadyCheck(gdb)(context.Background()); err != nil {
		t.Fatalf("ready check: %v", err)
	}
}
