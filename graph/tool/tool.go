// Package tool defines the executable-tool contract ToolNode dispatches
// against, plus the lifecycle-listener hook that cross-cutting concerns
// (schema validation, rate limiting, metrics) attach to.
package tool

import "context"

// ToolResult is what a successful or failed Tool.Execute call produces.
type ToolResult struct {
	OK       bool
	Value    any
	Error    string
	Metadata map[string]any
}

// Tool is a single callable capability a graph can dispatch to.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the tool's parameters as a JSON Schema object, or
	// nil for a tool that takes no parameters.
	Schema() map[string]any
	Execute(ctx context.Context, params map[string]any, tctx ToolInvocationContext) (ToolResult, error)
	// CanExecute reports whether the tool is willing to run with the
	// given params before Execute is attempted (e.g. a feature-flagged
	// or environment-gated tool).
	CanExecute(params map[string]any) bool
}

// ToolInvocationContext carries the per-attempt metadata a listener
// needs without giving it write access to the invocation itself.
type ToolInvocationContext struct {
	Tool          Tool
	NodeID        string
	Params        map[string]any
	AttemptNumber int
}

// ToolLifecycleListener observes tool dispatch. Listeners run in
// declared order; a non-nil error from OnInvoke aborts the call before
// Execute runs (used by schema validation and rate limiting).
type ToolLifecycleListener interface {
	OnInvoke(ctx context.Context, tctx ToolInvocationContext) error
	OnSuccess(ctx context.Context, tctx ToolInvocationContext, result ToolResult, durationMs int64)
	OnFailure(ctx context.Context, tctx ToolInvocationContext, err error, durationMs int64)
	OnComplete(ctx context.Context, tctx ToolInvocationContext)
}

// BaseListener is embeddable by listeners that only need to override
// one hook.
type BaseListener struct{}

func (BaseListener) OnInvoke(context.Context, ToolInvocationContext) error { return nil }
func (BaseListener) OnSuccess(context.Context, ToolInvocationContext, ToolResult, int64) {}
func (BaseListener) OnFailure(context.Context, ToolInvocationContext, error, int64)      {}
func (BaseListener) OnComplete(context.Context, ToolInvocationContext)                   {}

// RunInvokeListeners dispatches OnInvoke across listeners in order, stopping
// at the first error.
func RunInvokeListeners(ctx context.Context, listeners []ToolLifecycleListener, tctx ToolInvocationContext) error {
	for _, l := range listeners {
		if err := l.OnInvoke(ctx, tctx); err != nil {
			return err
		}
	}
	return nil
}
