package graph

import (
	"fmt"

	gtool "github.com/agentflow/graphcore/graph/tool"
)

// toolBinding is what a resolver hands back: a bound tool plus the
// namespace it was resolved under, threaded into ToolInvocationContext
// for observability.
type toolBinding struct {
	tool      gtool.Tool
	namespace string
}

// ValidationLevel tags a ToolResolver.Validate finding.
type ValidationLevel int

const (
	LevelWarning ValidationLevel = iota
	LevelError
)

func (l ValidationLevel) String() string {
	if l == LevelError {
		return "ERROR"
	}
	return "WARNING"
}

// ValidationEntry is one finding from ToolResolver.Validate.
type ValidationEntry struct {
	Level   ValidationLevel
	Message string
}

// ToolResolver picks a Tool for a given message (spec.md §4.5).
type ToolResolver interface {
	Resolve(msg Message) Result[toolBinding]
	Validate() []ValidationEntry
	DisplayName() string
}

// StaticResolver always resolves to the same bound tool.
type StaticResolver struct {
	Tool      gtool.Tool
	Namespace string
}

func (s StaticResolver) Resolve(Message) Result[toolBinding] {
	if s.Tool == nil {
		return Failure[toolBinding](ErrLookup("static resolver has no tool bound"))
	}
	return Success(toolBinding{tool: s.Tool, namespace: s.Namespace})
}

func (s StaticResolver) Validate() []ValidationEntry {
	if s.Tool == nil {
		return []ValidationEntry{{Level: LevelError, Message: "static resolver has no tool bound"}}
	}
	return nil
}

func (s StaticResolver) DisplayName() string { return "static(" + toolNameOrEmpty(s.Tool) + ")" }

func toolNameOrEmpty(t gtool.Tool) string {
	if t == nil {
		return ""
	}
	return t.Name()
}

// ToolRegistry is the process-wide, substitutable lookup RegistryResolver
// consumes (spec.md §9: "explicit dependency ... no static state is
// mandatory; a default in-process registry is allowed but
// substitutable").
type ToolRegistry interface {
	Lookup(name, namespace string) (gtool.Tool, bool)
	Names(namespace string) []string
}

// RegistryResolver selects (name, namespace) from the message and looks
// the tool up in a shared ToolRegistry (spec.md §4.5).
type RegistryResolver struct {
	Registry      ToolRegistry
	NameKey       string
	Namespace     string
	ExpectedTools []string
	Strict        bool
}

// NewRegistryResolver builds a resolver reading the tool name from
// msg.Data[nameKey], looking it up under namespace.
func NewRegistryResolver(registry ToolRegistry, nameKey, namespace string) *RegistryResolver {
	return &RegistryResolver{Registry: registry, NameKey: nameKey, Namespace: namespace}
}

func (r *RegistryResolver) Resolve(msg Message) Result[toolBinding] {
	raw, ok := msg.Data[r.NameKey]
	name, _ := raw.(string)
	if !ok || name == "" {
		return Failure[toolBinding](ToolLookupError("", r.Namespace))
	}
	t, found := r.Registry.Lookup(name, r.Namespace)
	if !found {
		return Failure[toolBinding](ToolLookupError(name, r.Namespace))
	}
	return Success(toolBinding{tool: t, namespace: r.Namespace})
}

// Validate implements the build-time expected-tools check from spec.md
// §4.5: with a non-empty registry, missing expected tools are WARNING
// (or ERROR when Strict) entries; with an empty registry, validation is
// skipped entirely to permit late wiring.
func (r *RegistryResolver) Validate() []ValidationEntry {
	if r.Registry == nil {
		return []ValidationEntry{{Level: LevelError, Message: "registry resolver has no registry"}}
	}
	if len(r.Registry.Names(r.Namespace)) == 0 {
		return nil
	}
	var entries []ValidationEntry
	for _, name := range r.ExpectedTools {
		if _, found := r.Registry.Lookup(name, r.Namespace); !found {
			level := LevelWarning
			if r.Strict {
				level = LevelError
			}
			entries = append(entries, ValidationEntry{
				Level:   level,
				Message: fmt.Sprintf("expected tool %q not found in namespace %q", name, r.Namespace),
			})
		}
	}
	return entries
}

func (r *RegistryResolver) DisplayName() string { return "registry(" + r.Namespace + ")" }

// DynamicResolver runs a user-supplied selector function.
type DynamicResolver struct {
	Select func(msg Message) (gtool.Tool, string, error)
	Name   string
}

func (d DynamicResolver) Resolve(msg Message) Result[toolBinding] {
	t, ns, err := d.Select(msg)
	if err != nil {
		return Failure[toolBinding](ToolLookupError(d.Name, ns).WithCause(err))
	}
	if t == nil {
		return Failure[toolBinding](ToolLookupError(d.Name, ns))
	}
	return Success(toolBinding{tool: t, namespace: ns})
}

func (d DynamicResolver) Validate() []ValidationEntry { return nil }
func (d DynamicResolver) DisplayName() string         { return "dynamic(" + d.Name + ")" }

// FallbackResolver tries each resolver in order until one succeeds.
type FallbackResolver struct {
	Resolvers []ToolResolver
}

func (f FallbackResolver) Resolve(msg Message) Result[toolBinding] {
	var lastErr error
	for _, r := range f.Resolvers {
		res := r.Resolve(msg)
		if res.Ok() {
			return res
		}
		lastErr = res.Err()
	}
	err := ErrLookup("all fallback resolvers failed")
	if lastErr != nil {
		err = err.WithCause(lastErr)
	}
	return Failure[toolBinding](err)
}

func (f FallbackResolver) Validate() []ValidationEntry {
	var entries []ValidationEntry
	for _, r := range f.Resolvers {
		entries = append(entries, r.Validate()...)
	}
	return entries
}

func (f FallbackResolver) DisplayName() string { return "fallback" }
