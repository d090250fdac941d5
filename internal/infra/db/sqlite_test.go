package db

import (
	"path/filepath"
	"testing"
)

func TestNewSQLite_InMemory(t *testing.T) {
	conn, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite(:memory:) failed: %v", err)
	}
	defer conn.Close()

	var one int
	if err := conn.QueryRow("SELECT 1").Scan(&one); err != nil {
		t.Fatalf("SELECT 1 failed: %v", err)
	}
	if one != 1 {
		t.Errorf("expected 1, got %d", one)
	}
}

func TestNewSQLite_CreatesFileInExistingDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	conn, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite(%q) failed: %v", path, err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected WAL journal mode, got %q", mode)
	}
}

func TestNewSQLite_MissingParentDirIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "test.db")
	if _, err := NewSQLite(path); err == nil {
		t.Error("expected error for missing parent directory")
	}
}
