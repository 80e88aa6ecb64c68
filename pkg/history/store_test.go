package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mirubo/pixpal/pkg/history"
)

// newBadgerStore creates an in-memory badger store for testing.
func newBadgerStore(t *testing.T) history.Store {
	t.Helper()
	s, err := history.NewBadger(history.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStores(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		exerciseStore(t, history.NewMemory())
	})
	t.Run("badger", func(t *testing.T) {
		exerciseStore(t, newBadgerStore(t))
	})
}

// exerciseStore runs the Store contract against one implementation.
func exerciseStore(t *testing.T, s history.Store) {
	ctx := context.Background()

	// Get non-existent key.
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	// Set and Get.
	if err := s.Set(ctx, "turn:a:0", []byte("v0")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "turn:a:0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v0" {
		t.Fatalf("Get = %q, want v0", got)
	}

	// Overwrite.
	if err := s.Set(ctx, "turn:a:0", []byte("v0x")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, _ = s.Get(ctx, "turn:a:0"); string(got) != "v0x" {
		t.Fatalf("Get after overwrite = %q", got)
	}

	// Batch write, then list by prefix in key order.
	err = s.SetBatch(ctx, []history.Entry{
		{Key: "turn:a:2", Value: []byte("v2")},
		{Key: "turn:a:1", Value: []byte("v1")},
		{Key: "turn:b:0", Value: []byte("other")},
	})
	if err != nil {
		t.Fatalf("SetBatch: %v", err)
	}
	entries, err := s.List(ctx, "turn:a:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List = %d entries, want 3", len(entries))
	}
	for i, want := range []string{"turn:a:0", "turn:a:1", "turn:a:2"} {
		if entries[i].Key != want {
			t.Errorf("entry %d key = %q, want %q", i, entries[i].Key, want)
		}
	}

	// List with a prefix nothing matches.
	entries, err = s.List(ctx, "turn:zzz:")
	if err != nil {
		t.Fatalf("List empty prefix: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List = %d entries, want 0", len(entries))
	}

	// Delete, also of an absent key.
	if err := s.Delete(ctx, "turn:a:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "turn:never-existed"); err != nil {
		t.Fatalf("Delete absent = %v, want nil", err)
	}
	if _, err := s.Get(ctx, "turn:a:1"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Get deleted = %v, want ErrNotFound", err)
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := history.NewBadger(history.BadgerOptions{}); err == nil {
		t.Fatal("on-disk mode without a directory should fail")
	}
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := history.NewBadger(history.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("persisted")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and read back.
	s, err = history.NewBadger(history.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("Get = %q", got)
	}
}
