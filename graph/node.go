package graph

import "context"

// Node is a unit of work in a graph (spec.md §4.4, §6). Every variant
// must return a message whose state is RUNNING (to continue), WAITING
// (to pause), or a terminal state; or a failure. Implementations must
// not mutate the input message — Message's value semantics make this
// the caller's responsibility to preserve, not the type system's.
type Node interface {
	ID() string
	Run(ctx context.Context, msg Message) Result[Message]
}

// NodeFunc adapts a plain function to Node for simple, stateless nodes
// that need no dedicated type.
type NodeFunc struct {
	id string
	fn func(ctx context.Context, msg Message) Result[Message]
}

// NewNodeFunc builds a Node from a function.
func NewNodeFunc(id string, fn func(ctx context.Context, msg Message) Result[Message]) NodeFunc {
	return NodeFunc{id: id, fn: fn}
}

func (n NodeFunc) ID() string { return n.id }

func (n NodeFunc) Run(ctx context.Context, msg Message) Result[Message] {
	return n.fn(ctx, msg)
}

// toolDispatcher is implemented by nodes whose dispatch the runner
// must special-case (spec.md §9: "closed set of variants modelled as
// tagged records" instead of a virtual hierarchy). The runner type-
// switches on these interfaces rather than adding variant tags to
// Node itself, keeping Node's own contract minimal.
type toolDispatcher interface {
	Node
	resolver() ToolResolver
	dispatchTool(ctx context.Context, msg Message, tool toolBinding) Result[Message]
}

// subgraphDispatcher is implemented by nodes that recurse into a child
// graph using the runner that is currently executing them (spec.md §9:
// "passes itself through an auxiliary method, never a captured
// singleton").
type subgraphDispatcher interface {
	Node
	runWithRunner(ctx context.Context, msg Message, r *Runner) Result[Message]
}
