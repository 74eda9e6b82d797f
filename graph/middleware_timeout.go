package graph

import (
	"context"
	"time"
)

// TimeoutMiddleware bounds node dispatch to a fixed duration, converting
// a context-deadline exceeded into a recoverable TimeoutError instead of
// letting it surface as a bare cancellation. Grounded on the teacher's
// executeNodeWithTimeout (graph/timeout.go in the teacher repo), but
// applied through Wrap. When WithDefaultNodeTimeout is set, the runner
// calls Wrap around each dispatch attempt inside its retry loop;
// middleware hooks and idempotency probing are not bounded.
type TimeoutMiddleware struct {
	BaseMiddleware
	Timeout time.Duration
}

// Wrap runs fn with a bounded context and converts deadline-exceeded into
// a KindTimeout GraphError. Call this around a node's dispatch, not
// around BeforeNode/AfterNode (which TimeoutMiddleware leaves as
// passthrough).
func (t TimeoutMiddleware) Wrap(ctx context.Context, nodeID string, fn func(context.Context) (Message, error)) (Message, error) {
	if t.Timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	result, err := fn(timeoutCtx)
	if err != nil && timeoutCtx.Err() == context.DeadlineExceeded {
		return result, NewGraphError(KindTimeout, "node exceeded timeout").
			WithContext("nodeId", nodeID).
			WithContext("timeout", t.Timeout.String())
	}
	return result, err
}
