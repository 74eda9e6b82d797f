package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/graphcore/graph"
	"github.com/agentflow/graphcore/graph/store"
)

func TestMemoryIdempotencyStoreSaveThenGet(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(4)
	ctx := context.Background()
	msg := graph.NewMessage("cached", "user")

	if err := s.Save(ctx, "k1", msg, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after save")
	}
	if got.Content != "cached" {
		t.Fatalf("content = %q, want cached", got.Content)
	}
}

func TestMemoryIdempotencyStoreMissOnUnknownKey(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(4)
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for an unsaved key")
	}
	stats, _ := s.Stats(context.Background())
	if stats.Misses != 1 {
		t.Fatalf("misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryIdempotencyStoreExpiresByTTL(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(4)
	ctx := context.Background()
	if err := s.Save(ctx, "k1", graph.NewMessage("x", "user"), time.Millisecond); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected the entry to have expired")
	}
}

func TestMemoryIdempotencyStoreEvictsOldestOnOverflow(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(2)
	ctx := context.Background()

	if err := s.Save(ctx, "oldest", graph.NewMessage("a", "user"), time.Second); err != nil {
		t.Fatalf("save oldest: %v", err)
	}
	if err := s.Save(ctx, "newer", graph.NewMessage("b", "user"), time.Minute); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := s.Save(ctx, "newest", graph.NewMessage("c", "user"), time.Minute); err != nil {
		t.Fatalf("save newest: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "oldest"); ok {
		t.Fatal("expected the entry with the soonest expiry to have been evicted")
	}
	if _, ok, _ := s.Get(ctx, "newer"); !ok {
		t.Fatal("expected the later-expiring entry to survive")
	}
	if _, ok, _ := s.Get(ctx, "newest"); !ok {
		t.Fatal("expected the just-saved entry to survive")
	}
}

func TestMemoryIdempotencyStoreDeleteAndClear(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(0)
	ctx := context.Background()
	s.Save(ctx, "k1", graph.NewMessage("a", "user"), time.Minute)
	s.Save(ctx, "k2", graph.NewMessage("b", "user"), time.Minute)

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k1"); ok {
		t.Fatal("expected k1 to be gone after delete")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k2"); ok {
		t.Fatal("expected k2 to be gone after clear")
	}
	stats, _ := s.Stats(ctx)
	if stats.Entries != 0 {
		t.Fatalf("entries = %d, want 0 after clear", stats.Entries)
	}
}

func TestMemoryIdempotencyStoreExists(t *testing.T) {
	s := store.NewMemoryIdempotencyStore(4)
	ctx := context.Background()
	s.Save(ctx, "k1", graph.NewMessage("a", "user"), time.Minute)

	exists, err := s.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected k1 to exist")
	}
	exists, err = s.Exists(ctx, "unknown")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected unknown key to not exist")
	}
}
