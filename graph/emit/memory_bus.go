package emit

import (
	"context"
	"sync"
)

// MemoryLifecycleBus is a shared in-process broadcast bus with an
// optional bounded, oldest-first-eviction replay buffer per topic
// (spec.md §4.11). Safe for concurrent use across runs.
type MemoryLifecycleBus struct {
	cfg BusConfig

	mu          sync.Mutex
	subscribers map[string][]chan LifecycleEvent
	history     map[string][]LifecycleEvent
	closed      bool
}

// NewMemoryLifecycleBus builds an in-memory bus. cfg.HistorySize <= 0
// with cfg.HistoryEnabled disables replay even if enabled.
func NewMemoryLifecycleBus(cfg BusConfig) *MemoryLifecycleBus {
	return &MemoryLifecycleBus{
		cfg:         cfg,
		subscribers: make(map[string][]chan LifecycleEvent),
		history:     make(map[string][]LifecycleEvent),
	}
}

func (b *MemoryLifecycleBus) Publish(_ context.Context, topic string, event LifecycleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	event.Topic = topic
	if b.cfg.HistoryEnabled && b.cfg.HistorySize > 0 {
		buf := append(b.history[topic], event)
		if len(buf) > b.cfg.HistorySize {
			buf = buf[len(buf)-b.cfg.HistorySize:]
		}
		b.history[topic] = buf
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
			if b.cfg.DeadLetter != nil {
				b.cfg.DeadLetter(topic, event, nil)
			}
		}
	}
	return nil
}

// Subscribe returns a buffered channel replayed with any retained
// history for topic, followed by live events, and an unsubscribe func.
func (b *MemoryLifecycleBus) Subscribe(_ context.Context, topic string) (<-chan LifecycleEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan LifecycleEvent, 64)
	for _, ev := range b.history[topic] {
		ch <- ev
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[topic]
		for i, c := range subs {
			if c == ch {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe, nil
}

func (b *MemoryLifecycleBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = make(map[string][]chan LifecycleEvent)
	return nil
}

// MemoryToolCallBus is the in-memory ToolCallEventBus counterpart: a
// single shared broadcast topic (tool calls have no sub-topic).
type MemoryToolCallBus struct {
	cfg BusConfig

	mu          sync.Mutex
	subscribers []chan ToolCallEvent
	history     []ToolCallEvent
	closed      bool
}

func NewMemoryToolCallBus(cfg BusConfig) *MemoryToolCallBus {
	return &MemoryToolCallBus{cfg: cfg}
}

func (b *MemoryToolCallBus) Publish(_ context.Context, event ToolCallEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if b.cfg.HistoryEnabled && b.cfg.HistorySize > 0 {
		b.history = append(b.history, event)
		if len(b.history) > b.cfg.HistorySize {
			b.history = b.history[len(b.history)-b.cfg.HistorySize:]
		}
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			if b.cfg.DeadLetter != nil {
				b.cfg.DeadLetter("toolcall", event, nil)
			}
		}
	}
	return nil
}

func (b *MemoryToolCallBus) Subscribe(_ context.Context) (<-chan ToolCallEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan ToolCallEvent, 64)
	for _, ev := range b.history {
		ch <- ev
	}
	b.subscribers = append(b.subscribers, ch)
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subscribers {
			if c == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe, nil
}

func (b *MemoryToolCallBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	return nil
}
