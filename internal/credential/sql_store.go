package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// DefaultSlot is the row used when a store is not given a slot name.
const DefaultSlot = "default"

// SQLStore persists the credential in SQLite or Postgres, one row per slot.
// Slots let several client profiles share one database.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
	slot    string
}

// NewSQLiteStore creates a SQLite-backed credential store.
// dsn can be a file path (e.g. /tmp/credential.db) or SQLite DSN.
func NewSQLiteStore(dsn, slot string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "betclient-credential.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite credential store: %w", err)
	}
	return newSQLStore(db, dialectSQLite, slot)
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(dsn, slot string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres credential store: %w", err)
	}
	return newSQLStore(db, dialectPostgres, slot)
}

func newSQLStore(db *sql.DB, dialect sqlDialect, slot string) (*SQLStore, error) {
	if strings.TrimSpace(slot) == "" {
		slot = DefaultSlot
	}
	s := &SQLStore{db: db, dialect: dialect, slot: slot}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s credential store: %w", s.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS credentials (
	slot TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`
	if s.dialect == dialectPostgres {
		ddl = `
CREATE TABLE IF NOT EXISTS credentials (
	slot TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s credential schema: %w", s.dialect, err)
	}
	return nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT token FROM credentials WHERE slot = ?`), s.slot).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return token, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, token string) error {
	q := s.bind(`
INSERT INTO credentials(slot, token, updated_at) VALUES(?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, s.slot, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM credentials WHERE slot = ?`), s.slot); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(fmt.Sprintf("$%d", argNum))
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
