package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/graphcore/graph"
)

func TestTimeoutMiddlewarePassesThroughFastFn(t *testing.T) {
	tm := graph.TimeoutMiddleware{Timeout: time.Second}
	want := graph.NewMessage("done", "user")
	got, err := tm.Wrap(context.Background(), "node", func(context.Context) (graph.Message, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("got a different message than fn returned")
	}
}

func TestTimeoutMiddlewareConvertsDeadlineExceeded(t *testing.T) {
	tm := graph.TimeoutMiddleware{Timeout: 5 * time.Millisecond}
	_, err := tm.Wrap(context.Background(), "slow-node", func(ctx context.Context) (graph.Message, error) {
		<-ctx.Done()
		return graph.Message{}, ctx.Err()
	})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	gerr, ok := err.(*graph.GraphError)
	if !ok {
		t.Fatalf("error type = %T, want *graph.GraphError", err)
	}
	if gerr.Kind != graph.KindTimeout {
		t.Fatalf("kind = %v, want KindTimeout", gerr.Kind)
	}
	if gerr.Context["nodeId"] != "slow-node" {
		t.Fatalf("nodeId context = %q, want slow-node", gerr.Context["nodeId"])
	}
}

func TestTimeoutMiddlewareZeroTimeoutDisablesBounding(t *testing.T) {
	tm := graph.TimeoutMiddleware{}
	called := false
	_, err := tm.Wrap(context.Background(), "node", func(context.Context) (graph.Message, error) {
		called = true
		return graph.NewMessage("x", "user"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected fn to run when Timeout is zero")
	}
}

func TestTimeoutMiddlewarePropagatesNonTimeoutError(t *testing.T) {
	tm := graph.TimeoutMiddleware{Timeout: time.Second}
	sentinel := graph.ErrExecution("node-specific failure")
	_, err := tm.Wrap(context.Background(), "node", func(context.Context) (graph.Message, error) {
		return graph.Message{}, sentinel
	})
	if err != sentinel {
		t.Fatalf("expected the original error to pass through unconverted, got %v", err)
	}
}
