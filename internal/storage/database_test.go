package storage

import (
	"path/filepath"
	"testing"

	"teachbot/internal/config"
)

func TestOpenCreatesDataDir(t *testing.T) {
	cfg := &config.Config{}
	cfg.BasicConfig.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// migrations are idempotent
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("Migrate twice: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&count); err != nil {
		t.Fatalf("query tokens table: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty tokens table, got %d rows", count)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.BasicConfig.DataDir = t.TempDir()
	if _, err := Open("postgres", cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestMigrateUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.BasicConfig.DataDir = t.TempDir()
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "postgres"); err == nil {
		t.Fatalf("expected error for unsupported migration driver")
	}
}
