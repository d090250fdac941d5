package db

import (
	"database/sql"
	"fmt"
	"time"

	// Register the lib/pq postgres driver under the name "postgres"
	_ "github.com/lib/pq"
)

// statementTimeout bounds any single query server-side. The translator runs
// machine-generated SQL, so a runaway join must be killed by the database,
// not just abandoned by the client.
const statementTimeout = 15 * time.Second

// NewPostgres opens a pooled connection to the Chinook postgres database.
// Every session is read-only with a server-side statement timeout: this
// process never writes to the relational database.
func NewPostgres(dsn string) (*sql.DB, error) {
	full := fmt.Sprintf(
		"%s options='-c default_transaction_read_only=on -c statement_timeout=%d'",
		dsn, statementTimeout.Milliseconds(),
	)

	conn, err := sql.Open("postgres", full)
	if err != nil {
		return nil, fmt.Errorf("db.NewPostgres: open: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db.NewPostgres: ping: %w", err)
	}

	return conn, nil
}
