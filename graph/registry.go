package graph

import (
	"sync"

	gtool "github.com/agentflow/graphcore/graph/tool"
)

// InMemoryToolRegistry is a shared, substitutable ToolRegistry
// implementation (spec.md §9: "no static state is mandatory; a default
// in-process registry is allowed but substitutable"). A package-level
// default exists for convenience but every RegistryResolver takes its
// registry explicitly rather than reaching for a singleton.
type InMemoryToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]map[string]gtool.Tool // namespace -> name -> tool
}

func NewInMemoryToolRegistry() *InMemoryToolRegistry {
	return &InMemoryToolRegistry{tools: make(map[string]map[string]gtool.Tool)}
}

// Register adds t under namespace, replacing any existing tool of the
// same name.
func (r *InMemoryToolRegistry) Register(namespace string, t gtool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools[namespace] == nil {
		r.tools[namespace] = make(map[string]gtool.Tool)
	}
	r.tools[namespace][t.Name()] = t
}

func (r *InMemoryToolRegistry) Lookup(name, namespace string) (gtool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.tools[namespace]
	if !ok {
		return nil, false
	}
	t, ok := ns[name]
	return t, ok
}

func (r *InMemoryToolRegistry) Names(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns := r.tools[namespace]
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	return names
}

// Reset clears every registered tool; tests reset the registry between
// cases (spec.md §9) rather than relying on process isolation.
func (r *InMemoryToolRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]map[string]gtool.Tool)
}

// DefaultToolRegistry is the substitutable process-default registry.
// Nothing in this package reaches for it implicitly; callers opt in by
// passing it to NewRegistryResolver.
var DefaultToolRegistry = NewInMemoryToolRegistry()
