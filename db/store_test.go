package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "state.sqlite")
	gdb, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store, err := NewStore(gdb)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	start := time.Now()
	if err := store.StartRun(ctx, "run-1", "Contacts", start); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", 10, 2, start.Add(time.Minute)); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
}

func TestStoreStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, found, err := store.LoadState(ctx, "Contacts"); err != nil || found {
		t.Fatalf("LoadState() on empty store = %v, %v", found, err)
	}

	blob := json.RawMessage(`{"bookmarks":{"Contacts":{"cursor":"abc"}}}`)
	if err := store.SaveState(ctx, "Contacts", blob, time.Now()); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	// Overwrite with a newer checkpoint.
	newer := json.RawMessage(`{"bookmarks":{"Contacts":{"cursor":"def"}}}`)
	if err := store.SaveState(ctx, "Contacts", newer, time.Now()); err != nil {
		t.Fatalf("SaveState() overwrite error = %v", err)
	}

	got, found, err := store.LoadState(ctx, "Contacts")
	if err != nil || !found {
		t.Fatalf("LoadState() = %v, %v", found, err)
	}
	if string(got) != string(newer) {
		t.Fatalf("LoadState() = %s, want %s", got, newer)
	}
}
