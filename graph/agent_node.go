package graph

import "context"

// AgentCapability produces a reply given the current message. A typical
// implementation adapts a model.ChatModel: build a []model.Message from
// msg.Content/msg.Data, call Chat, and translate ChatOut back into a
// reply Message.
type AgentCapability interface {
	Invoke(ctx context.Context, msg Message) (Message, error)
}

// AgentCapabilityFunc adapts a function to AgentCapability.
type AgentCapabilityFunc func(ctx context.Context, msg Message) (Message, error)

func (f AgentCapabilityFunc) Invoke(ctx context.Context, msg Message) (Message, error) {
	return f(ctx, msg)
}

// AgentNode delegates to an AgentCapability and copies its reply's
// content/data back onto the envelope, preserving the metadata keys the
// runner owns (spec.md §4.4). It never touches msg.State itself: the
// runner decides RUNNING/WAITING/terminal transitions around dispatch.
type AgentNode struct {
	id         string
	capability AgentCapability
}

func NewAgentNode(id string, capability AgentCapability) *AgentNode {
	return &AgentNode{id: id, capability: capability}
}

func (n *AgentNode) ID() string { return n.id }

func (n *AgentNode) Run(ctx context.Context, msg Message) Result[Message] {
	reply, err := n.capability.Invoke(ctx, msg)
	if err != nil {
		return Failure[Message](ErrExecution("agent capability failed").WithContext("nodeId", n.id).WithCause(err))
	}
	out := msg.WithContent(reply.Content)
	for k, v := range reply.Data {
		out = out.WithData(k, v)
	}
	return Success(out)
}
