package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"), testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_AppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "acme", "+111", "user", "hola"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "acme", "+111", "assistant", "¡Hola!"); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := store.Recent(ctx, "acme", "+111", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "hola" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Content != "¡Hola!" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestSQLiteStore_RecentReturnsNewestWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := store.Append(ctx, "acme", "+111", "user", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := store.Recent(ctx, "acme", "+111", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	// The window is the newest turns, still in chronological order.
	if turns[0].Content != "msg 7" || turns[2].Content != "msg 9" {
		t.Fatalf("unexpected window: %+v", turns)
	}
}

func TestSQLiteStore_IsolatesTenantsAndContacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, "acme", "+111", "user", "from acme")
	store.Append(ctx, "globex", "+111", "user", "from globex")
	store.Append(ctx, "acme", "+222", "user", "other contact")

	turns, err := store.Recent(ctx, "acme", "+111", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "from acme" {
		t.Fatalf("conversation leaked across tenants or contacts: %+v", turns)
	}
}

func TestSQLiteStore_EmptyConversation(t *testing.T) {
	store := newTestStore(t)
	turns, err := store.Recent(context.Background(), "acme", "+111", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestNoopStore(t *testing.T) {
	store := NewNoopStore()
	ctx := context.Background()
	if err := store.Append(ctx, "acme", "+111", "user", "hola"); err != nil {
		t.Fatalf("append: %v", err)
	}
	turns, err := store.Recent(ctx, "acme", "+111", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if turns != nil {
		t.Fatalf("noop store should return nothing, got %+v", turns)
	}
}
