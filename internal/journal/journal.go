// Package journal records every mutating call the client sends upstream
// (bets, withdrawals, deposits, admin edits) together with its outcome, so a
// user or operator can see what was submitted even when the response was
// lost.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Entry is one journaled mutating call.
type Entry struct {
	RequestID    string    `json:"request_id"`
	Operation    string    `json:"operation"`
	Upstream     string    `json:"upstream"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Status       int       `json:"status"`
	ErrorMessage string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Writer persists journal entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// NoopWriter ignores all writes.
type NoopWriter struct{}

// Write implements Writer.
func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// Query filters List results. Zero Limit means 50.
type Query struct {
	Limit     int
	Offset    int
	Operation string
}

// Result is a page of entries, newest first.
type Result struct {
	Total int     `json:"total"`
	Data  []Entry `json:"data"`
}

// SQLWriter persists entries to SQLite/Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens (or creates) a SQLite journal.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "betclient-journal.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens a Postgres journal.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres journal: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s journal: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS mutation_journal (
	id INTEGER PRIMARY KEY,
	request_id TEXT,
	operation TEXT NOT NULL,
	upstream TEXT NOT NULL,
	method TEXT NOT NULL,
	path TEXT NOT NULL,
	status INTEGER NOT NULL,
	error_message TEXT,
	created_at TIMESTAMP NOT NULL
);`

	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS mutation_journal (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT,
	operation TEXT NOT NULL,
	upstream TEXT NOT NULL,
	method TEXT NOT NULL,
	path TEXT NOT NULL,
	status INTEGER NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize journal schema: %w", err)
	}
	return nil
}

// Write implements Writer.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := w.bind(`INSERT INTO mutation_journal(request_id, operation, upstream, method, path, status, error_message, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := w.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.Operation,
		entry.Upstream,
		entry.Method,
		entry.Path,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// List returns entries matching q, newest first.
func (w *SQLWriter) List(ctx context.Context, q Query) (Result, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	where := ""
	var args []interface{}
	if q.Operation != "" {
		where = " WHERE operation = ?"
		args = append(args, q.Operation)
	}

	var total int
	if err := w.db.QueryRowContext(ctx, w.bind(`SELECT COUNT(*) FROM mutation_journal`+where), args...).Scan(&total); err != nil {
		return Result{}, fmt.Errorf("count journal entries: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, w.bind(`
SELECT request_id, operation, upstream, method, path, status, error_message, created_at
FROM mutation_journal`+where+`
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`), append(args, q.Limit, q.Offset)...)
	if err != nil {
		return Result{}, fmt.Errorf("list journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := Result{Total: total, Data: make([]Entry, 0)}
	for rows.Next() {
		var (
			e         Entry
			requestID sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&requestID, &e.Operation, &e.Upstream, &e.Method, &e.Path, &e.Status, &errMsg, &e.CreatedAt); err != nil {
			return Result{}, fmt.Errorf("scan journal entry: %w", err)
		}
		e.RequestID = requestID.String
		e.ErrorMessage = errMsg.String
		out.Data = append(out.Data, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

// DeleteBefore removes entries created before t and returns how many were removed.
func (w *SQLWriter) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx, w.bind(`DELETE FROM mutation_journal WHERE created_at < ?`), t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete journal entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *SQLWriter) bind(query string) string {
	if w.dialect != "postgres" {
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
