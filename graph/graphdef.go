package graph

import (
	"time"

	"github.com/agentflow/graphcore/graph/emit"
	"github.com/agentflow/graphcore/graph/tool"
)

// Graph is an immutable description of a workflow (spec.md §3). Once
// built it is safe to share across concurrent runs: the runner never
// mutates it.
type Graph struct {
	ID          string
	EntryPoint  string
	Nodes       map[string]Node
	Edges       []Edge
	AllowCycles bool

	IdempotencyStore       IdempotencyStore
	CachePolicy            CachePolicy
	VectorCache            VectorCache
	EventBus               emit.LifecycleEventBus
	ToolCallEventBus       emit.ToolCallEventBus
	Middleware             []Middleware
	ToolLifecycleListeners []tool.ToolLifecycleListener
	RetryPolicy            *RetryPolicy
	RetryEnabled           *bool
}

// retryEnabled reports the graph's own retry setting: the explicit flag
// when set, else whether a RetryPolicy is present. It does not see the
// runner default; Runner.retryPolicyFor applies the full three-way rule.
func (g *Graph) retryEnabled() bool {
	if g.RetryEnabled != nil {
		return *g.RetryEnabled
	}
	return g.RetryPolicy != nil
}

// GraphBuilder assembles a Graph incrementally, performing tool-resolver
// validation at Build time (spec.md §6).
type GraphBuilder struct {
	g          Graph
	buildErr   error
}

// NewGraphBuilder starts a builder for the graph identified by id.
func NewGraphBuilder(id string) *GraphBuilder {
	return &GraphBuilder{g: Graph{
		ID:          id,
		Nodes:       make(map[string]Node),
		CachePolicy: DefaultCachePolicy(),
	}}
}

func (b *GraphBuilder) AddNode(n Node) *GraphBuilder {
	b.g.Nodes[n.ID()] = n
	return b
}

func (b *GraphBuilder) AddEdge(e Edge) *GraphBuilder {
	b.g.Edges = append(b.g.Edges, e)
	return b
}

func (b *GraphBuilder) EntryPoint(id string) *GraphBuilder {
	b.g.EntryPoint = id
	return b
}

func (b *GraphBuilder) AllowCycles(allow bool) *GraphBuilder {
	b.g.AllowCycles = allow
	return b
}

func (b *GraphBuilder) WithIdempotencyStore(s IdempotencyStore) *GraphBuilder {
	b.g.IdempotencyStore = s
	return b
}

func (b *GraphBuilder) WithCachePolicy(p CachePolicy) *GraphBuilder {
	b.g.CachePolicy = p
	return b
}

func (b *GraphBuilder) WithVectorCache(c VectorCache) *GraphBuilder {
	b.g.VectorCache = c
	return b
}

func (b *GraphBuilder) WithEventBus(bus emit.LifecycleEventBus) *GraphBuilder {
	b.g.EventBus = bus
	return b
}

func (b *GraphBuilder) WithToolCallEventBus(bus emit.ToolCallEventBus) *GraphBuilder {
	b.g.ToolCallEventBus = bus
	return b
}

func (b *GraphBuilder) WithMiddleware(mw ...Middleware) *GraphBuilder {
	b.g.Middleware = append(b.g.Middleware, mw...)
	return b
}

// WithToolLifecycleListeners registers listeners applied to every
// ToolNode in the graph (e.g. a shared SchemaValidator or RateLimiter),
// in addition to whatever per-node listeners NewToolNode was given.
// Build merges them into each ToolNode's own listener list.
func (b *GraphBuilder) WithToolLifecycleListeners(l ...tool.ToolLifecycleListener) *GraphBuilder {
	b.g.ToolLifecycleListeners = append(b.g.ToolLifecycleListeners, l...)
	return b
}

func (b *GraphBuilder) WithRetryPolicy(p RetryPolicy) *GraphBuilder {
	b.g.RetryPolicy = &p
	return b
}

func (b *GraphBuilder) WithRetryEnabled(enabled bool) *GraphBuilder {
	b.g.RetryEnabled = &enabled
	return b
}

// Build validates the ToolResolver of every ToolNode in this graph and
// returns the finished Graph. Build-time ERROR-level resolver findings
// abort construction (spec.md §4.5, §6); WARNING findings are dropped
// silently and no API returns them. Tool nodes inside a SubgraphNode's
// child graph are not revisited here.
func (b *GraphBuilder) Build() (*Graph, error) {
	for _, n := range b.g.Nodes {
		td, ok := n.(toolDispatcher)
		if !ok {
			continue
		}
		for _, entry := range td.resolver().Validate() {
			if entry.Level == LevelError {
				return nil, ErrValidation("tool resolver validation failed: " + entry.Message).
					WithContext("nodeId", n.ID())
			}
		}
	}
	g := b.g
	if len(g.ToolLifecycleListeners) > 0 {
		for _, n := range g.Nodes {
			if tn, ok := n.(*ToolNode); ok {
				tn.listeners = append(tn.listeners, g.ToolLifecycleListeners...)
			}
		}
	}
	if err := Validate(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks graph invariants in the order spec.md §4.3 names.
func Validate(g *Graph) error {
	if _, ok := g.Nodes[g.EntryPoint]; !ok {
		return ErrValidation("entry point not in nodes").WithContext("entryPoint", g.EntryPoint)
	}
	for _, e := range g.Edges {
		if e.From != Wildcard {
			if _, ok := g.Nodes[e.From]; !ok {
				return ErrValidation("edge source not in nodes").WithContext("from", e.From)
			}
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return ErrValidation("edge target not in nodes").WithContext("to", e.To)
		}
	}
	if !g.AllowCycles {
		if cyc := findCycle(g); cyc != "" {
			return ErrValidation("graph contains a cycle but allowCycles is false").WithContext("node", cyc)
		}
	}
	return nil
}

// findCycle runs a DFS from the entry point over concrete (non-wildcard)
// edges and returns the id of a node found on the current recursion
// stack, or "" if acyclic.
func findCycle(g *Graph) string {
	adjacency := make(map[string][]string)
	for _, e := range g.Edges {
		if e.From == Wildcard {
			continue
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				return next
			case white:
				if found := visit(next); found != "" {
					return found
				}
			}
		}
		color[id] = black
		return ""
	}
	return visit(g.EntryPoint)
}

// RunSnapshot is the CheckpointStore persistence payload (spec.md §6,
// "optional persistence-oriented runner variant").
type RunSnapshot struct {
	RunID         string
	GraphID       string
	Message       Message
	CurrentNodeID string
	SavedAt       time.Time
}
