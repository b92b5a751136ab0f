package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWritersImplementWriter(_ *testing.T) {
	var _ Writer = NoopWriter{}
	var _ Writer = (*SQLWriter)(nil)
}

func TestSQLiteWriter_WriteListDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("new sqlite writer: %v", err)
	}
	t.Cleanup(func() {
		_ = w.Close()
	})

	now := time.Now().UTC()
	entries := []Entry{
		{
			RequestID: "req-1",
			Operation: "place_bet",
			Upstream:  "api",
			Method:    "POST",
			Path:      "/bets",
			Status:    201,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			RequestID: "req-2",
			Operation: "withdraw",
			Upstream:  "api",
			Method:    "POST",
			Path:      "/withdraw",
			Status:    200,
			CreatedAt: now.Add(-1 * time.Hour),
		},
		{
			RequestID:    "req-3",
			Operation:    "place_bet",
			Upstream:     "api",
			Method:       "POST",
			Path:         "/bets",
			Status:       400,
			ErrorMessage: "Insufficient balance",
			CreatedAt:    now,
		},
	}

	for _, entry := range entries {
		if err := w.Write(context.Background(), entry); err != nil {
			t.Fatalf("write journal entry: %v", err)
		}
	}

	result, err := w.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 3 || len(result.Data) != 3 {
		t.Fatalf("expected 3 entries, total=%d len=%d", result.Total, len(result.Data))
	}
	if result.Data[0].RequestID != "req-3" {
		t.Fatalf("expected newest first, got %s", result.Data[0].RequestID)
	}
	if result.Data[0].ErrorMessage != "Insufficient balance" {
		t.Fatalf("unexpected error message %q", result.Data[0].ErrorMessage)
	}

	bets, err := w.List(context.Background(), Query{Operation: "place_bet"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if bets.Total != 2 || len(bets.Data) != 2 {
		t.Fatalf("expected 2 place_bet entries, total=%d len=%d", bets.Total, len(bets.Data))
	}

	deleted, err := w.DeleteBefore(context.Background(), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected deleted=2, got %d", deleted)
	}

	remaining, err := w.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if remaining.Total != 1 || remaining.Data[0].RequestID != "req-3" {
		t.Fatalf("unexpected remaining entries: %+v", remaining)
	}
}

func TestPostgresWriterContract(t *testing.T) {
	dsn := os.Getenv("BETCLIENT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set BETCLIENT_TEST_POSTGRES_DSN to run Postgres journal integration tests")
	}

	w, err := NewPostgresWriter(dsn)
	if err != nil {
		t.Fatalf("new postgres writer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = w.db.Exec("DELETE FROM mutation_journal")
		_ = w.Close()
	})
	_, _ = w.db.Exec("DELETE FROM mutation_journal")

	entry := Entry{
		RequestID: "pg-req",
		Operation: "deposit",
		Upstream:  "api",
		Method:    "POST",
		Path:      "/admin/balance",
		Status:    200,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.Write(context.Background(), entry); err != nil {
		t.Fatalf("write: %v", err)
	}
	result, err := w.List(context.Background(), Query{Operation: "deposit"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 || result.Data[0].RequestID != "pg-req" {
		t.Fatalf("unexpected result %+v", result)
	}
}
