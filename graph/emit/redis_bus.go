package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLifecycleBus persists lifecycle events to a Redis Stream per
// topic and reads them back through a consumer group, giving
// replay-on-reconnect semantics the in-memory bus can't offer
// (spec.md §4.11).
type RedisLifecycleBus struct {
	client *redis.Client
	group  string
	cfg    BusConfig
}

// NewRedisLifecycleBus builds a bus backed by client, consuming under
// the named consumer group (one group per logical subscriber service).
func NewRedisLifecycleBus(client *redis.Client, group string, cfg BusConfig) *RedisLifecycleBus {
	return &RedisLifecycleBus{client: client, group: group, cfg: cfg}
}

func (b *RedisLifecycleBus) streamKey(topic string) string {
	return "graphcore:lifecycle:" + topic
}

func (b *RedisLifecycleBus) Publish(ctx context.Context, topic string, event LifecycleEvent) error {
	event.Topic = topic
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: b.streamKey(topic),
		Values: map[string]any{"payload": payload},
	}
	if b.cfg.HistoryEnabled && b.cfg.HistorySize > 0 {
		args.MaxLen = int64(b.cfg.HistorySize)
		args.Approx = true
	}
	return b.retryPublish(ctx, func() error {
		return b.client.XAdd(ctx, args).Err()
	})
}

func (b *RedisLifecycleBus) retryPublish(ctx context.Context, fn func() error) error {
	attempts := 1
	if b.cfg.RetryPolicy != nil && b.cfg.RetryPolicy.MaxAttempts > 0 {
		attempts = b.cfg.RetryPolicy.MaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if delay := b.cfg.RetryPolicy.delay(attempt); delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		return nil
	}
	if b.cfg.DeadLetter != nil {
		b.cfg.DeadLetter("", nil, lastErr)
	}
	return lastErr
}

// Subscribe creates the stream's consumer group (if absent) and polls
// it in a background goroutine, delivering decoded events on the
// returned channel until unsubscribe is called.
func (b *RedisLifecycleBus) Subscribe(ctx context.Context, topic string) (<-chan LifecycleEvent, func(), error) {
	key := b.streamKey(topic)
	if err := b.client.XGroupCreateMkStream(ctx, key, b.group, "0").Err(); err != nil && err != redis.Nil {
		// BUSYGROUP means the group already exists, which is fine.
		if !isBusyGroup(err) {
			return nil, nil, err
		}
	}

	ch := make(chan LifecycleEvent, 64)
	consumerCtx, cancel := context.WithCancel(ctx)
	consumer := fmt.Sprintf("consumer-%d", time.Now().UnixNano())

	go func() {
		defer close(ch)
		for {
			select {
			case <-consumerCtx.Done():
				return
			default:
			}
			streams, err := b.client.XReadGroup(consumerCtx, &redis.XReadGroupArgs{
				Group:    b.group,
				Consumer: consumer,
				Streams:  []string{key, ">"},
				Count:    32,
				Block:    2 * time.Second,
			}).Result()
			if err != nil {
				continue
			}
			for _, stream := range streams {
				for _, msg := range stream.Messages {
					raw, _ := msg.Values["payload"].(string)
					var event LifecycleEvent
					if json.Unmarshal([]byte(raw), &event) == nil {
						select {
						case ch <- event:
						case <-consumerCtx.Done():
							return
						}
					}
					b.client.XAck(consumerCtx, key, b.group, msg.ID)
				}
			}
		}
	}()

	return ch, cancel, nil
}

func (b *RedisLifecycleBus) Close() error { return b.client.Close() }

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// RedisToolCallBus is the ToolCallEventBus counterpart, persisting to a
// single shared stream.
type RedisToolCallBus struct {
	client *redis.Client
	group  string
	cfg    BusConfig
}

func NewRedisToolCallBus(client *redis.Client, group string, cfg BusConfig) *RedisToolCallBus {
	return &RedisToolCallBus{client: client, group: group, cfg: cfg}
}

const redisToolCallStream = "graphcore:toolcalls"

func (b *RedisToolCallBus) Publish(ctx context.Context, event ToolCallEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{Stream: redisToolCallStream, Values: map[string]any{"payload": payload}}
	if b.cfg.HistoryEnabled && b.cfg.HistorySize > 0 {
		args.MaxLen = int64(b.cfg.HistorySize)
		args.Approx = true
	}
	return b.client.XAdd(ctx, args).Err()
}

func (b *RedisToolCallBus) Subscribe(ctx context.Context) (<-chan ToolCallEvent, func(), error) {
	if err := b.client.XGroupCreateMkStream(ctx, redisToolCallStream, b.group, "0").Err(); err != nil && !isBusyGroup(err) {
		return nil, nil, err
	}
	ch := make(chan ToolCallEvent, 64)
	consumerCtx, cancel := context.WithCancel(ctx)
	consumer := fmt.Sprintf("consumer-%d", time.Now().UnixNano())

	go func() {
		defer close(ch)
		for {
			select {
			case <-consumerCtx.Done():
				return
			default:
			}
			streams, err := b.client.XReadGroup(consumerCtx, &redis.XReadGroupArgs{
				Group: b.group, Consumer: consumer,
				Streams: []string{redisToolCallStream, ">"}, Count: 32, Block: 2 * time.Second,
			}).Result()
			if err != nil {
				continue
			}
			for _, stream := range streams {
				for _, msg := range stream.Messages {
					raw, _ := msg.Values["payload"].(string)
					var event ToolCallEvent
					if json.Unmarshal([]byte(raw), &event) == nil {
						select {
						case ch <- event:
						case <-consumerCtx.Done():
							return
						}
					}
					b.client.XAck(consumerCtx, redisToolCallStream, b.group, msg.ID)
				}
			}
		}
	}()
	return ch, cancel, nil
}

func (b *RedisToolCallBus) Close() error { return b.client.Close() }
