package graph

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionState is the legal state set a Message moves through as it is
// advanced by the runner. See transition() in state_machine.go for the
// legal-edge table.
type ExecutionState int

const (
	// StateReady is the initial state a Message must be in to be handed
	// to Runner.Execute.
	StateReady ExecutionState = iota
	// StateRunning means a node is (or is about to be) dispatched.
	StateRunning
	// StateWaiting means the run is cooperatively paused for a human (or
	// other external actor) to supply data via Runner.Resume.
	StateWaiting
	// StateCompleted is terminal: the run finished successfully.
	StateCompleted
	// StateFailed is terminal: the run finished with an unrecovered error.
	StateFailed
	// StateCancelled is terminal: the run was cancelled.
	StateCancelled
)

func (s ExecutionState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateWaiting:
		return "WAITING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether a Message in this state may no longer be
// re-entered into the runner (spec.md §3 invariants).
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// StateTransition is one entry in a Message's append-only history.
type StateTransition struct {
	From      ExecutionState
	To        ExecutionState
	Reason    string
	NodeID    string
	Timestamp time.Time
}

// ToolCallRecord describes one tool invocation appended to a Message by a
// ToolNode or tool-execution helper.
type ToolCallRecord struct {
	Name       string
	Arguments  map[string]any
	Result     any
	OK         bool
	DurationMs int64
	Attempt    int
	Error      string
}

// Reserved metadata keys. User code must never write these directly; the
// runner and its collaborators own them. See spec.md §6.
const (
	MetaIntentSignature = "intentSignature"
	MetaIntent           = "intent"
	MetaIntentVector     = "intentVector"
	MetaIntentKey        = "intentKey"
	metaSubgraphStack    = "__subgraph_checkpoint_stack__"
)

// Message is the typed envelope that flows through a graph. Every
// mutation returns a new Message; the receiver is never modified, which
// is what makes "no node observes a mutation of its input after
// returning" (spec.md §8) true by construction.
type Message struct {
	ID            string
	CorrelationID string
	RunID         string
	GraphID       string
	NodeID        string

	Content string
	Data    map[string]any
	Meta    map[string]any

	From      string
	ToolCalls []ToolCallRecord

	State        ExecutionState
	StateHistory []StateTransition

	CreatedAt time.Time
}

// NewMessage constructs a Message in the READY state with a freshly
// generated ID and correlation ID seeded from it, and seeds StateHistory
// with the synthetic first-observed-state entry required by spec.md §3.
func NewMessage(content, from string) Message {
	id := uuid.NewString()
	now := time.Now()
	return Message{
		ID:            id,
		CorrelationID: id,
		Content:       content,
		From:          from,
		Data:          map[string]any{},
		Meta:          map[string]any{},
		State:         StateReady,
		StateHistory: []StateTransition{
			{From: StateReady, To: StateReady, Reason: "created", Timestamp: now},
		},
		CreatedAt: now,
	}
}

// clone returns a deep-enough copy of the Message for value semantics:
// maps and slices are copied so mutating the returned Message never
// affects the receiver.
func (m Message) clone() Message {
	next := m
	next.Data = cloneAnyMap(m.Data)
	next.Meta = cloneAnyMap(m.Meta)
	next.ToolCalls = append([]ToolCallRecord(nil), m.ToolCalls...)
	next.StateHistory = append([]StateTransition(nil), m.StateHistory...)
	return next
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	next := make(map[string]any, len(m))
	for k, v := range m {
		next[k] = v
	}
	return next
}

// WithData returns a copy of the Message with key set in Data.
func (m Message) WithData(key string, value any) Message {
	next := m.clone()
	next.Data[key] = value
	return next
}

// WithMeta returns a copy of the Message with key set in Meta.
func (m Message) WithMeta(key string, value any) Message {
	next := m.clone()
	next.Meta[key] = value
	return next
}

// WithContent returns a copy of the Message with Content replaced.
func (m Message) WithContent(content string) Message {
	next := m.clone()
	next.Content = content
	return next
}

// WithNodeID returns a copy of the Message re-stamped onto nodeID. This
// is a plain field copy, not a state transition, and per spec.md §9's
// open-question resolution must never appear in StateHistory.
func (m Message) WithNodeID(nodeID string) Message {
	next := m.clone()
	next.NodeID = nodeID
	return next
}

// WithGraphContext re-stamps GraphID/NodeID/RunID without touching State
// or StateHistory. Used by the subgraph resume protocol to re-scope a
// message between parent and child graphs (spec.md §4.6).
func (m Message) WithGraphContext(graphID, nodeID, runID string) Message {
	next := m.clone()
	next.GraphID = graphID
	next.NodeID = nodeID
	next.RunID = runID
	return next
}

// AppendToolCall returns a copy of the Message with rec appended to
// ToolCalls.
func (m Message) AppendToolCall(rec ToolCallRecord) Message {
	next := m.clone()
	next.ToolCalls = append(next.ToolCalls, rec)
	return next
}

// Pause transitions the Message to WAITING, recording nodeID and reason
// in StateHistory. Custom nodes call this from Run to signal a
// cooperative human-in-the-loop suspension (spec.md §4.6); the runner
// observes the returned Message's WAITING state and suspends the run
// rather than selecting an outgoing edge. Fails if the Message isn't
// currently RUNNING, since WAITING is only reachable from RUNNING.
func (m Message) Pause(nodeID, reason string) (Message, error) {
	return transition(m, StateWaiting, reason, nodeID)
}

// IntentSignature derives the key used to address the idempotency step
// cache, per spec.md §4.9: metadata["intentSignature"], else
// metadata["intent"], else a content-hash prefix, else the message ID.
func (m Message) IntentSignature() string {
	if v, ok := m.Meta[MetaIntentSignature].(string); ok && v != "" {
		return v
	}
	if v, ok := m.Meta[MetaIntent].(string); ok && v != "" {
		return v
	}
	if m.Content != "" {
		return hashContentPrefix(m.Content)
	}
	return m.ID
}
