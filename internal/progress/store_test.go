package progress

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/snonux/bookmaker/internal/testutil"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "progress.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_CompletedAndFailed(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			state, err := store.Load(ctx, "doc")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if state.Total != 0 || len(state.Completed) != 0 {
				t.Fatalf("new document should have empty state, got %+v", state)
			}

			if err := store.MarkCompleted(ctx, "doc", 0, "uno", 3); err != nil {
				t.Fatalf("MarkCompleted() error = %v", err)
			}
			if err := store.MarkFailed(ctx, "doc", 1, "rate limited", 3); err != nil {
				t.Fatalf("MarkFailed() error = %v", err)
			}
			if err := store.MarkCompleted(ctx, "doc", 2, "tres", 3); err != nil {
				t.Fatalf("MarkCompleted() error = %v", err)
			}
			// A late failure must not undo a completed unit
			if err := store.MarkFailed(ctx, "doc", 2, "boom", 3); err != nil {
				t.Fatalf("MarkFailed() error = %v", err)
			}

			state, err = store.Load(ctx, "doc")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if state.Total != 3 || state.Processed != 2 {
				t.Errorf("Total/Processed = %d/%d, want 3/2", state.Total, state.Processed)
			}
			if state.Completed[0] != "uno" || state.Completed[2] != "tres" {
				t.Errorf("Completed = %v", state.Completed)
			}
			if state.Failed[1] != "rate limited" || len(state.Failed) != 1 {
				t.Errorf("Failed = %v", state.Failed)
			}

			// Retrying the failed unit successfully clears the failure
			if err := store.MarkCompleted(ctx, "doc", 1, "dos", 3); err != nil {
				t.Fatalf("MarkCompleted() error = %v", err)
			}
			state, _ = store.Load(ctx, "doc")
			if state.Processed != 3 || len(state.Failed) != 0 {
				t.Errorf("after retry: Processed = %d, Failed = %v", state.Processed, state.Failed)
			}
		})
	}
}

func TestStore_IndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.MarkCompleted(ctx, "doc", 3, "x", 3); err == nil {
				t.Error("index == total should be rejected")
			}
			if err := store.MarkFailed(ctx, "doc", -1, "x", 3); err == nil {
				t.Error("negative index should be rejected")
			}
		})
	}
}

func TestStore_ResetAndIsolation(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_ = store.MarkCompleted(ctx, "a", 0, "A", 1)
			_ = store.MarkCompleted(ctx, "b", 0, "B", 1)

			if err := store.Reset(ctx, "a"); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}

			a, _ := store.Load(ctx, "a")
			b, _ := store.Load(ctx, "b")
			if len(a.Completed) != 0 || a.Total != 0 {
				t.Errorf("reset state = %+v", a)
			}
			if b.Completed[0] != "B" {
				t.Errorf("other document affected: %+v", b)
			}
		})
	}
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.MarkCompleted(ctx, "doc", 0, "x", 1)

	state, _ := store.Load(ctx, "doc")
	state.Completed[0] = "mutated"

	again, _ := store.Load(ctx, "doc")
	if again.Completed[0] != "x" {
		t.Error("Load must not expose internal maps")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := store.MarkCompleted(ctx, "doc", 4, "cinco", 10); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	store.Close()

	store, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	state, err := store.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Completed[4] != "cinco" || state.Total != 10 || state.Processed != 1 {
		t.Errorf("state after reopen = %+v", state)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestDocumentKey(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteTXT(t, dir, "a.txt", "Same content")
	b := testutil.WriteTXT(t, dir, "renamed.txt", "Same content")
	c := testutil.WriteTXT(t, dir, "c.txt", "Other content")

	keyA, err := DocumentKey(a, "zh-hans", "bilingual")
	if err != nil {
		t.Fatalf("DocumentKey() error = %v", err)
	}
	if len(keyA) != 64 || strings.Trim(keyA, "0123456789abcdef") != "" {
		t.Errorf("key should be hex sha256, got %q", keyA)
	}

	keyB, _ := DocumentKey(b, "zh-hans", "bilingual")
	if keyA != keyB {
		t.Error("same content under another name should keep the key")
	}

	for _, other := range []struct{ path, lang, mode string }{
		{c, "zh-hans", "bilingual"},
		{a, "ja", "bilingual"},
		{a, "zh-hans", "single"},
	} {
		key, _ := DocumentKey(other.path, other.lang, other.mode)
		if key == keyA {
			t.Errorf("key for %+v should differ", other)
		}
	}

	if _, err := DocumentKey(filepath.Join(dir, "missing.txt"), "en", "single"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error = %v", err)
	}
	if path != filepath.Join("/var/state", "bookmaker", "progress.db") {
		t.Errorf("DefaultPath() = %q", path)
	}
}
