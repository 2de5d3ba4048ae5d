package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordFile(ctx, FileRecord{
		Platform:  "telegram",
		SenderID:  "u1",
		Kind:      "word",
		Path:      "/tmp/report.docx",
		SizeBytes: 1234,
		Source:    "generate",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	if _, err := store.RecordFile(ctx, FileRecord{
		Platform: "telegram", SenderID: "u1", Kind: "pdf", Path: "/tmp/report.pdf",
	}); err != nil {
		t.Fatalf("record second: %v", err)
	}

	recs, err := store.RecentFiles(ctx, "telegram", "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Other senders see nothing.
	other, err := store.RecentFiles(ctx, "telegram", "u2", 10)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("sender isolation broken: %v", other)
	}
}

func TestAuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.LogAudit(ctx, AuditEntry{
		Action:   "tool_call",
		ToolName: "create_office_file",
		SenderID: "u1",
		Result:   "ok",
		Details:  "word report.docx",
	}); err != nil {
		t.Fatalf("log: %v", err)
	}

	entries, err := store.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ToolName != "create_office_file" || entries[0].Result != "ok" {
		t.Fatalf("entry = %+v", entries[0])
	}
}
