package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pdfrealm/internal/bootstrap/config"
)

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "notes.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	if _, err := os.Stat(filepath.Dir(dsn)); err != nil {
		t.Fatalf("sqlite directory missing: %v", err)
	}

	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}

func TestSQLiteDSNAppendsPragma(t *testing.T) {
	if got := SQLiteDSN("a.db"); got != "a.db?_pragma=foreign_keys(1)" {
		t.Fatalf("SQLiteDSN() = %q", got)
	}
	if got := SQLiteDSN("file::memory:?cache=shared"); got != "file::memory:?cache=shared&_pragma=foreign_keys(1)" {
		t.Fatalf("SQLiteDSN() = %q", got)
	}
}

func TestEnsureSQLiteDirectorySkipsMemory(t *testing.T) {
	for _, dsn := range []string{":memory:", "file::memory:?cache=shared", ""} {
		if err := ensureSQLiteDirectory(context.Background(), dsn); err != nil {
			t.Fatalf("ensureSQLiteDirectory(%q) error = %v", dsn, err)
		}
	}
}
