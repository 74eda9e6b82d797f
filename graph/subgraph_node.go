package graph

import "context"

// SubgraphNode owns a child Graph and forwards the flowing message into
// it via the runner currently executing this node (spec.md §4.4, §4.6,
// §9). It must never be dispatched through plain Node.Run by the
// runner's generic path — the runner type-switches to runWithRunner so
// the child graph runs under the same Runner and its options. The child
// graph's nodes use the child graph's own middleware, retry policy, and
// tool listeners; the parent graph's middleware and retry policy wrap
// the SubgraphNode dispatch as a whole and are not applied inside the
// child.
type SubgraphNode struct {
	id            string
	child         *Graph
	outputMapping map[string]string
}

// NewSubgraphNode builds a node delegating to child, promoting child
// output data keys into the parent message under outputMapping
// (parentKey -> childKey).
func NewSubgraphNode(id string, child *Graph, outputMapping map[string]string) *SubgraphNode {
	return &SubgraphNode{id: id, child: child, outputMapping: outputMapping}
}

func (n *SubgraphNode) ID() string { return n.id }

// Run exists to satisfy Node; the runner always prefers runWithRunner
// via the subgraphDispatcher type switch, so this path only fires if a
// caller dispatches the node directly without a runner in scope, which
// is a programming error.
func (n *SubgraphNode) Run(_ context.Context, _ Message) Result[Message] {
	return Failure[Message](ErrExecution("SubgraphNode dispatched without a runner").WithContext("nodeId", n.id))
}

func (n *SubgraphNode) runWithRunner(ctx context.Context, msg Message, r *Runner) Result[Message] {
	parentGraphID, parentRunID := msg.GraphID, msg.RunID
	childMsg := msg.WithGraphContext(n.child.ID, "", "")
	// execute() requires a READY message (it performs the Ready->Running
	// transition itself), but msg arrives already RUNNING from the
	// parent's own dispatch. Rewinding State directly bypasses the state
	// machine rather than going through transition() — the same
	// documented escape hatch resumeSubgraphFrame uses to fabricate a
	// RUNNING message on the way back out.
	childMsg.State = StateReady

	res := r.execute(ctx, n.child, childMsg)
	if !res.Ok() {
		return res
	}
	childOut := res.Value()

	if childOut.State == StateWaiting {
		frame := SubgraphCheckpointContext{
			ParentNodeID:  n.id,
			ParentGraphID: parentGraphID,
			ParentRunID:   parentRunID,
			ChildGraphID:  n.child.ID,
			ChildNodeID:   childOut.NodeID,
			ChildRunID:    childOut.RunID,
			OutputMapping: n.outputMapping,
			Depth:         len(checkpointStack(childOut)) + 1,
		}
		withFrame := pushCheckpointFrame(childOut, frame)
		rescoped := withFrame.WithGraphContext(parentGraphID, n.id, parentRunID)
		return Success(rescoped)
	}

	return Success(n.completeFromChild(msg, childOut, parentGraphID, parentRunID))
}

// completeFromChild applies outputMapping and re-scopes a COMPLETED (or
// otherwise terminal) child message back onto the parent envelope.
func (n *SubgraphNode) completeFromChild(parentMsg, childOut Message, parentGraphID, parentRunID string) Message {
	out := parentMsg
	for parentKey, childKey := range n.outputMapping {
		if v, ok := childOut.Data[childKey]; ok {
			out = out.WithData(parentKey, v)
		}
	}
	return out.WithGraphContext(parentGraphID, n.id, parentRunID)
}

// resumeSubgraphFrame implements the recursive step of spec.md §4.6's
// resume procedure: pop the outermost frame, locate its SubgraphNode in
// parentGraph, rebuild a child-facing message, and recurse via r.resume.
func resumeSubgraphFrame(ctx context.Context, r *Runner, parentGraph *Graph, msg Message) Result[Message] {
	frame, stripped, ok := popCheckpointFrame(msg)
	if !ok {
		return Failure[Message](ErrValidation("malformed subgraph checkpoint stack"))
	}
	node, found := parentGraph.Nodes[frame.ParentNodeID]
	if !found {
		return Failure[Message](ErrExecution("subgraph checkpoint references unknown node").WithContext("nodeId", frame.ParentNodeID))
	}
	sgNode, ok := node.(*SubgraphNode)
	if !ok {
		return Failure[Message](ErrExecution("subgraph checkpoint node is not a SubgraphNode").WithContext("nodeId", frame.ParentNodeID))
	}

	childMsg := stripped.WithGraphContext(frame.ChildGraphID, frame.ChildNodeID, frame.ChildRunID)
	res := r.resume(ctx, sgNode.child, childMsg)
	if !res.Ok() {
		return res
	}
	childOut := res.Value()

	if childOut.State == StateWaiting {
		innerFrame := frame
		innerFrame.ChildNodeID = childOut.NodeID
		innerFrame.Depth = len(checkpointStack(childOut)) + 1
		withFrame := pushCheckpointFrame(childOut, innerFrame)
		rescoped := withFrame.WithGraphContext(frame.ParentGraphID, frame.ParentNodeID, frame.ParentRunID)
		return Success(rescoped)
	}

	// childOut is terminal (typically COMPLETED): apply outputMapping and
	// fabricate a RUNNING message at the parent so the node loop can
	// continue from the edge after the SubgraphNode. This bypasses the
	// state machine (spec.md §9) — the revalidation performed by the
	// runner's node loop after re-scoping must still pass.
	rescoped := sgNode.completeFromChild(childOut.WithGraphContext(frame.ParentGraphID, frame.ParentNodeID, frame.ParentRunID), childOut, frame.ParentGraphID, frame.ParentRunID)
	synthetic := rescoped
	synthetic.State = StateRunning
	im := newIdempotencyManager(parentGraph.IdempotencyStore, parentGraph.CachePolicy)
	return r.continueAfterNode(ctx, parentGraph, sgNode.id, synthetic, im)
}
