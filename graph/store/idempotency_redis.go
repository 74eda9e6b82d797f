package store

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentflow/graphcore/graph"
)

// RedisIdempotencyStore shares a step cache across process instances
// using Redis key TTLs for expiry, so a horizontally-scaled runner
// deployment dedupes node executions consistently.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewRedisIdempotencyStore(client *redis.Client, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "graphcore:idem:"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (graph.Message, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		s.misses.Add(1)
		return graph.Message{}, false, nil
	}
	if err != nil {
		return graph.Message{}, false, err
	}
	var msg graph.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return graph.Message{}, false, err
	}
	s.hits.Add(1)
	return msg, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, msg graph.Message, ttl time.Duration) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}

func (s *RedisIdempotencyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return err
	}
	s.evictions.Add(1)
	return nil
}

func (s *RedisIdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	return n > 0, err
}

func (s *RedisIdempotencyStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisIdempotencyStore) Stats(ctx context.Context) (graph.IdempotencyStats, error) {
	var entries int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return graph.IdempotencyStats{}, err
	}
	return graph.IdempotencyStats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Entries:   entries,
	}, nil
}
