package graph

import (
	"context"
	"time"

	gtool "github.com/agentflow/graphcore/graph/tool"
)

// ToolNode resolves a tool via its ToolResolver, reads parameters from
// Data, invokes the tool, appends a tool-call record, and writes the
// result into Data["tool_result"] plus any result-metadata entries
// (spec.md §4.4, §4.13). The runner never calls Run directly — it goes
// through the toolDispatcher path so retry and lifecycle listeners wrap
// every attempt.
type ToolNode struct {
	id        string
	resolve   ToolResolver
	paramsKey string
	listeners []gtool.ToolLifecycleListener
}

// NewToolNode builds a ToolNode reading invocation parameters from
// msg.Data[paramsKey] (a map[string]any), resolving its tool via
// resolver.
func NewToolNode(id string, resolver ToolResolver, paramsKey string, listeners ...gtool.ToolLifecycleListener) *ToolNode {
	return &ToolNode{id: id, resolve: resolver, paramsKey: paramsKey, listeners: listeners}
}

func (n *ToolNode) ID() string { return n.id }

func (n *ToolNode) resolver() ToolResolver { return n.resolve }

// Run resolves and invokes with attempt 0; used only when a ToolNode is
// dispatched outside the runner's retry wrapper (e.g. inside a
// ParallelNode branch).
func (n *ToolNode) Run(ctx context.Context, msg Message) Result[Message] {
	res := n.resolve.Resolve(msg)
	if !res.Ok() {
		return Failure[Message](res.Err())
	}
	return n.dispatchTool(ctx, msg, res.Value())
}

func (n *ToolNode) params(msg Message) map[string]any {
	raw, ok := msg.Data[n.paramsKey]
	if !ok {
		return map[string]any{}
	}
	params, _ := raw.(map[string]any)
	if params == nil {
		return map[string]any{}
	}
	return params
}

// dispatchTool runs one attempt: listeners.OnInvoke (schema validation,
// rate limiting), Tool.Execute, then OnSuccess/OnFailure/OnComplete in
// the order spec.md §4.13 requires (OnComplete always fires).
func (n *ToolNode) dispatchTool(ctx context.Context, msg Message, binding toolBinding) Result[Message] {
	return n.dispatchToolAttempt(ctx, msg, binding, 0)
}

func (n *ToolNode) dispatchToolAttempt(ctx context.Context, msg Message, binding toolBinding, attempt int) Result[Message] {
	params := n.params(msg)
	tctx := gtool.ToolInvocationContext{
		Tool:          binding.tool,
		NodeID:        n.id,
		Params:        params,
		AttemptNumber: attempt,
	}

	start := time.Now()
	defer func() {
		for _, l := range n.listeners {
			l.OnComplete(ctx, tctx)
		}
	}()

	if !binding.tool.CanExecute(params) {
		err := NewGraphError(KindTool, "tool declined to execute").WithContext("nodeId", n.id).WithContext("tool", binding.tool.Name())
		n.notifyFailure(ctx, tctx, err, time.Since(start).Milliseconds())
		return Failure[Message](err)
	}

	if err := gtool.RunInvokeListeners(ctx, n.listeners, tctx); err != nil {
		gerr := NewGraphError(KindValidation, "tool invocation rejected by listener").WithContext("nodeId", n.id).WithCause(err)
		n.notifyFailure(ctx, tctx, gerr, time.Since(start).Milliseconds())
		return Failure[Message](gerr)
	}

	result, err := binding.tool.Execute(ctx, params, tctx)
	durationMs := time.Since(start).Milliseconds()

	rec := ToolCallRecord{
		Name:       binding.tool.Name(),
		Arguments:  params,
		DurationMs: durationMs,
		Attempt:    attempt,
	}

	if err != nil {
		gerr := NewGraphError(KindTool, "tool execution failed").WithContext("nodeId", n.id).WithContext("tool", binding.tool.Name()).WithCause(err)
		n.notifyFailure(ctx, tctx, gerr, durationMs)
		return Failure[Message](gerr)
	}

	// onSuccess fires on Success(toolResult) regardless of toolResult.OK
	// (spec.md §4.13); only a returned error is a dispatch Failure.
	for _, l := range n.listeners {
		l.OnSuccess(ctx, tctx, result, durationMs)
	}

	rec.Result = result.Value
	rec.OK = result.OK
	rec.Error = result.Error

	out := msg.AppendToolCall(rec).WithData("tool_result", result.Value)
	for k, v := range result.Metadata {
		out = out.WithData(k, v)
	}
	if !result.OK {
		return Failure[Message](NewGraphError(KindTool, "tool reported failure").
			WithContext("nodeId", n.id).WithContext("tool", binding.tool.Name()).WithContext("error", result.Error))
	}
	return Success(out)
}

func (n *ToolNode) notifyFailure(ctx context.Context, tctx gtool.ToolInvocationContext, err error, durationMs int64) {
	for _, l := range n.listeners {
		l.OnFailure(ctx, tctx, err, durationMs)
	}
}
