package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/graphcore/graph"
	"github.com/agentflow/graphcore/graph/store"
)

func TestMemoryVectorCacheSaveThenLookup(t *testing.T) {
	c := store.NewMemoryVectorCache()
	entry := graph.VectorEntry{Key: "k1", Vector: []float64{0.1, 0.2}, Metadata: map[string]any{"from": "user"}}

	if err := c.Save(context.Background(), entry, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := c.Lookup("k1")
	if !ok {
		t.Fatal("expected a hit after save")
	}
	if len(got.Vector) != 2 || got.Vector[0] != 0.1 {
		t.Fatalf("vector = %v, want [0.1 0.2]", got.Vector)
	}
}

func TestMemoryVectorCacheLookupMissOnUnknownKey(t *testing.T) {
	c := store.NewMemoryVectorCache()
	if _, ok := c.Lookup("nope"); ok {
		t.Fatal("expected a miss for an unsaved key")
	}
}

func TestMemoryVectorCacheExpiresByTTL(t *testing.T) {
	c := store.NewMemoryVectorCache()
	c.Save(context.Background(), graph.VectorEntry{Key: "k1", Vector: []float64{1}}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Lookup("k1"); ok {
		t.Fatal("expected the entry to have expired")
	}
}
