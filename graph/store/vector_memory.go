package store

import (
	"context"
	"sync"
	"time"

	"github.com/agentflow/graphcore/graph"
)

// MemoryVectorCache is a best-effort, unbounded in-memory VectorCache.
// Lookup skips entries past their TTL; they stay in the map until the
// same key is saved again.
type MemoryVectorCache struct {
	mu      sync.Mutex
	entries map[string]vectorEntryWithExpiry
}

type vectorEntryWithExpiry struct {
	entry     graph.VectorEntry
	expiresAt time.Time
}

func NewMemoryVectorCache() *MemoryVectorCache {
	return &MemoryVectorCache{entries: make(map[string]vectorEntryWithExpiry)}
}

func (c *MemoryVectorCache) Save(_ context.Context, entry graph.VectorEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = vectorEntryWithExpiry{entry: entry, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Lookup is a store-specific extension beyond the VectorCache contract,
// useful for tests and for an intent-similarity search layered on top.
func (c *MemoryVectorCache) Lookup(key string) (graph.VectorEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return graph.VectorEntry{}, false
	}
	return e.entry, true
}
