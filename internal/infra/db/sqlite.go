// Package db provides database/sql connection factories.
// Two backends are supported for the Chinook database: postgres (the
// reference deployment) and sqlite for local development and tests.
// SQLite uses modernc.org/sqlite — a pure-Go driver (no CGO required).
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// NewSQLite opens (or creates) a SQLite database at path and configures it:
//   - WAL journal mode (allows concurrent reads during writes)
//   - Foreign key enforcement (SQLite disables FKs by default)
//   - 5-second busy timeout (prevents SQLITE_BUSY errors under burst writes)
//   - Synchronous=NORMAL (safe + faster than FULL for WAL mode)
//
// Use ":memory:" as path for in-memory databases in tests.
// Returns an error if the parent directory does not exist (will not create it).
func NewSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("db.NewSQLite: parent directory %q does not exist", dir)
		}
	}

	// DSN with PRAGMAs applied at connection time via query parameters.
	// modernc.org/sqlite supports _pragma=... params in the DSN.
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-64000)" + // 64MB page cache (negative = KB)
		"&_pragma=temp_store(MEMORY)" // temp tables in RAM

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db.NewSQLite: open %q: %w", path, err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty
		// in-memory database.
		conn.SetMaxOpenConns(1)
	} else {
		// WAL allows concurrent readers; writers are serialized by SQLite itself.
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db.NewSQLite: ping %q: %w", path, err)
	}

	return conn, nil
}
