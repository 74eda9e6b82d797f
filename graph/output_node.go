package graph

import "context"

// MetaIsOutput is set by OutputNode to mark the message that carries
// the run's final, selected value.
const MetaIsOutput = "isOutput"

// OutputNode applies Selector to choose a value, writes it into
// Content, marks the message as the run's output, and transitions it
// to COMPLETED (spec.md §4.4). Run performs that transition itself via
// the state machine's transition helper and hands back a message whose
// State is already StateCompleted, so the runner ends the run there.
type OutputNode struct {
	id       string
	selector func(msg Message) any
}

func NewOutputNode(id string, selector func(msg Message) any) *OutputNode {
	return &OutputNode{id: id, selector: selector}
}

func (n *OutputNode) ID() string { return n.id }

func (n *OutputNode) Run(ctx context.Context, msg Message) Result[Message] {
	value := n.selector(msg)
	text, ok := value.(string)
	if !ok {
		text = msg.Content
	}
	out := msg.WithContent(text).WithMeta(MetaIsOutput, true).WithData("output_value", value)
	completed, err := transition(out, StateCompleted, "output node selected final value", n.id)
	if err != nil {
		return Failure[Message](err)
	}
	return Success(completed)
}
