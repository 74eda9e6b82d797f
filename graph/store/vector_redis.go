package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentflow/graphcore/graph"
)

// RedisVectorCache shares the intent-vector side cache across
// instances. Recording failures are the caller's problem to swallow
// (graph.recordIntentVector already does); this type just surfaces
// genuine Redis errors to that best-effort caller.
type RedisVectorCache struct {
	client *redis.Client
	prefix string
}

func NewRedisVectorCache(client *redis.Client, prefix string) *RedisVectorCache {
	if prefix == "" {
		prefix = "graphcore:vec:"
	}
	return &RedisVectorCache{client: client, prefix: prefix}
}

func (c *RedisVectorCache) Save(ctx context.Context, entry graph.VectorEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+entry.Key, raw, ttl).Err()
}

func (c *RedisVectorCache) Lookup(ctx context.Context, key string) (graph.VectorEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return graph.VectorEntry{}, false, nil
	}
	if err != nil {
		return graph.VectorEntry{}, false, err
	}
	var entry graph.VectorEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return graph.VectorEntry{}, false, err
	}
	return entry, true, nil
}
