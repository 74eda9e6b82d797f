// Package graph provides the core graph execution engine for the
// orchestration runtime: the Message state machine, the graph runner,
// node variants, and the collaborator contracts (idempotency, event
// buses, resolvers) the runner consumes.
package graph

import "fmt"

// ErrorKind classifies a GraphError for recovery and retry decisions.
//
// The split mirrors spec.md §7: Validation/Execution/Lookup/Authorization/
// Cancellation are never retried and always surface; Tool/Network/Timeout/
// RateLimit/Retryable form the recoverable subset the retry supervisor and
// onError middleware act on.
type ErrorKind int

const (
	// KindValidation covers illegal graphs, illegal messages, and illegal
	// state transitions. Never retried.
	KindValidation ErrorKind = iota
	// KindExecution covers invariant violations during dispatch.
	KindExecution
	// KindLookup covers missing nodes or missing tools.
	KindLookup
	// KindTool covers tool-reported failures (ToolResult.OK == false or a
	// tool returning an error).
	KindTool
	// KindNetwork covers transport-level failures reaching a collaborator.
	KindNetwork
	// KindTimeout covers node/tool dispatch exceeding its configured
	// deadline.
	KindTimeout
	// KindRateLimit covers a collaborator signalling throttling.
	KindRateLimit
	// KindRetryable is a catch-all transient class for errors that don't
	// fit a more specific recoverable kind but are still worth retrying.
	KindRetryable
	// KindAuthorization covers permission/security failures. Surfaced
	// immediately, never retried.
	KindAuthorization
	// KindCancellation covers a run ending in CANCELLED.
	KindCancellation
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindExecution:
		return "Execution"
	case KindLookup:
		return "Lookup"
	case KindTool:
		return "Tool"
	case KindNetwork:
		return "Network"
	case KindTimeout:
		return "Timeout"
	case KindRateLimit:
		return "RateLimit"
	case KindRetryable:
		return "Retryable"
	case KindAuthorization:
		return "Authorization"
	case KindCancellation:
		return "Cancellation"
	default:
		return "Unknown"
	}
}

// recoverableKinds is the subset of ErrorKind the retry supervisor and
// onError middleware are allowed to act on. Everything else always
// surfaces.
var recoverableKinds = map[ErrorKind]bool{
	KindTool:      true,
	KindNetwork:   true,
	KindTimeout:   true,
	KindRateLimit: true,
	KindRetryable: true,
}

// GraphError is the structured error type every runner-level failure is
// reported as. It replaces a class hierarchy with a single tagged struct,
// per spec.md §9's "inheritance-based error taxonomy" design note.
type GraphError struct {
	Kind    ErrorKind
	Message string
	Context map[string]string
	Cause   error
}

// NewGraphError constructs a GraphError with an empty context map.
func NewGraphError(kind ErrorKind, message string) *GraphError {
	return &GraphError{Kind: kind, Message: message, Context: map[string]string{}}
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// WithContext returns a new GraphError with the given key/value merged
// into its context. The receiver is never mutated.
func (e *GraphError) WithContext(key, value string) *GraphError {
	next := &GraphError{Kind: e.Kind, Message: e.Message, Cause: e.Cause, Context: make(map[string]string, len(e.Context)+1)}
	for k, v := range e.Context {
		next.Context[k] = v
	}
	next.Context[key] = value
	return next
}

// WithCause returns a new GraphError wrapping the given cause.
func (e *GraphError) WithCause(cause error) *GraphError {
	next := &GraphError{Kind: e.Kind, Message: e.Message, Cause: cause, Context: make(map[string]string, len(e.Context))}
	for k, v := range e.Context {
		next.Context[k] = v
	}
	return next
}

// Recoverable reports whether this error's kind belongs to the retryable
// subset (spec.md §4.2).
func (e *GraphError) Recoverable() bool {
	return recoverableKinds[e.Kind]
}

// ErrValidation constructs a Validation-kind error.
func ErrValidation(message string) *GraphError { return NewGraphError(KindValidation, message) }

// ErrExecution constructs an Execution-kind error.
func ErrExecution(message string) *GraphError { return NewGraphError(KindExecution, message) }

// ErrLookup constructs a Lookup-kind error.
func ErrLookup(message string) *GraphError { return NewGraphError(KindLookup, message) }

// ToolLookupError reports a tool resolver miss, carrying the requested
// name/namespace in context for diagnostics.
func ToolLookupError(name, namespace string) *GraphError {
	return ErrLookup("tool not found").WithContext("name", name).WithContext("namespace", namespace)
}
