package emit_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/graphcore/graph/emit"
)

func TestMemoryLifecycleBusPublishSubscribe(t *testing.T) {
	bus := emit.NewMemoryLifecycleBus(emit.BusConfig{})
	ch, unsubscribe, err := bus.Subscribe(context.Background(), "graph.g1.started")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	if err := bus.Publish(context.Background(), "graph.g1.started", emit.LifecycleEvent{Event: "started"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Topic != "graph.g1.started" {
			t.Fatalf("topic = %q, want graph.g1.started", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}

func TestMemoryLifecycleBusReplaysHistoryOnSubscribe(t *testing.T) {
	bus := emit.NewMemoryLifecycleBus(emit.BusConfig{HistoryEnabled: true, HistorySize: 2})
	ctx := context.Background()
	bus.Publish(ctx, "topic", emit.LifecycleEvent{Event: "one"})
	bus.Publish(ctx, "topic", emit.LifecycleEvent{Event: "two"})
	bus.Publish(ctx, "topic", emit.LifecycleEvent{Event: "three"})

	ch, unsubscribe, err := bus.Subscribe(ctx, "topic")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev.Event)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for replayed history")
		}
	}
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("replayed = %v, want [two three] (bounded to last 2)", got)
	}
}

func TestMemoryLifecycleBusTopicsAreIsolated(t *testing.T) {
	bus := emit.NewMemoryLifecycleBus(emit.BusConfig{})
	ctx := context.Background()
	chA, unsubA, _ := bus.Subscribe(ctx, "topic.a")
	defer unsubA()
	chB, unsubB, _ := bus.Subscribe(ctx, "topic.b")
	defer unsubB()

	bus.Publish(ctx, "topic.a", emit.LifecycleEvent{Event: "for-a"})

	select {
	case ev := <-chA:
		if ev.Event != "for-a" {
			t.Fatalf("event = %q, want for-a", ev.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on topic.a")
	}
	select {
	case ev := <-chB:
		t.Fatalf("topic.b should not receive topic.a's publication, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryLifecycleBusCloseStopsDelivery(t *testing.T) {
	bus := emit.NewMemoryLifecycleBus(emit.BusConfig{})
	ctx := context.Background()
	ch, _, _ := bus.Subscribe(ctx, "topic")

	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Publish(ctx, "topic", emit.LifecycleEvent{Event: "after-close"}); err != nil {
		t.Fatalf("publish after close should be a no-op, not an error: %v", err)
	}

	if _, open := <-ch; open {
		t.Fatal("expected the subscriber channel to be closed")
	}
}

func TestMemoryToolCallBusPublishSubscribe(t *testing.T) {
	bus := emit.NewMemoryToolCallBus(emit.BusConfig{})
	ch, unsubscribe, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	if err := bus.Publish(context.Background(), emit.ToolCallEvent{EmittedBy: "node-a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.EmittedBy != "node-a" {
			t.Fatalf("emittedBy = %q, want node-a", ev.EmittedBy)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the tool-call event")
	}
}

func TestMemoryToolCallBusDeadLetterOnFullSubscriber(t *testing.T) {
	var deadLettered int
	bus := emit.NewMemoryToolCallBus(emit.BusConfig{
		DeadLetter: func(topic string, event any, err error) { deadLettered++ },
	})
	ctx := context.Background()
	_, unsubscribe, _ := bus.Subscribe(ctx)
	defer unsubscribe()

	// The subscriber channel is buffered (64); flood past capacity with
	// nobody draining it so the publish path must dead-letter instead of
	// blocking.
	for i := 0; i < 100; i++ {
		bus.Publish(ctx, emit.ToolCallEvent{EmittedBy: "flood"})
	}
	if deadLettered == 0 {
		t.Fatal("expected at least one event to be dead-lettered once the buffer filled")
	}
}
