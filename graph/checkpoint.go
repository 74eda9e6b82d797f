package graph

// SubgraphCheckpointContext is one stacked frame recorded when a
// subgraph pauses, letting the runner resume past it later (spec.md
// §3, §4.6). Frames are stacked outermost-first in message metadata
// under a reserved key.
type SubgraphCheckpointContext struct {
	ParentNodeID  string
	ParentGraphID string
	ParentRunID   string
	ChildGraphID  string
	ChildNodeID   string
	ChildRunID    string
	OutputMapping map[string]string
	Depth         int
}

// encode renders a frame into the generic string/int/map shape spec.md
// §6 requires for serialization-friendliness (bit-exact field names).
func (f SubgraphCheckpointContext) encode() map[string]any {
	mapping := make(map[string]any, len(f.OutputMapping))
	for k, v := range f.OutputMapping {
		mapping[k] = v
	}
	return map[string]any{
		"parentNodeId":  f.ParentNodeID,
		"parentGraphId": f.ParentGraphID,
		"parentRunId":   f.ParentRunID,
		"childGraphId":  f.ChildGraphID,
		"childNodeId":   f.ChildNodeID,
		"childRunId":    f.ChildRunID,
		"depth":         f.Depth,
		"outputMapping": mapping,
	}
}

// decodeCheckpointFrame accepts either a native SubgraphCheckpointContext
// (never dropped) or its generic mapping form (e.g. after a JSON
// round-trip through an event bus or checkpoint store). Non-conforming
// entries are dropped, returning ok=false, per spec.md §6/§9.
func decodeCheckpointFrame(raw any) (SubgraphCheckpointContext, bool) {
	if f, ok := raw.(SubgraphCheckpointContext); ok {
		return f, true
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return SubgraphCheckpointContext{}, false
	}
	str := func(key string) (string, bool) {
		v, ok := m[key].(string)
		return v, ok
	}
	parentNodeID, ok1 := str("parentNodeId")
	parentGraphID, ok2 := str("parentGraphId")
	parentRunID, ok3 := str("parentRunId")
	childGraphID, ok4 := str("childGraphId")
	childNodeID, ok5 := str("childNodeId")
	childRunID, ok6 := str("childRunId")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return SubgraphCheckpointContext{}, false
	}
	depth := 0
	switch d := m["depth"].(type) {
	case int:
		depth = d
	case float64:
		depth = int(d)
	default:
		return SubgraphCheckpointContext{}, false
	}
	mappingRaw, ok := m["outputMapping"].(map[string]any)
	if !ok {
		return SubgraphCheckpointContext{}, false
	}
	mapping := make(map[string]string, len(mappingRaw))
	for k, v := range mappingRaw {
		s, ok := v.(string)
		if !ok {
			return SubgraphCheckpointContext{}, false
		}
		mapping[k] = s
	}
	return SubgraphCheckpointContext{
		ParentNodeID: parentNodeID, ParentGraphID: parentGraphID, ParentRunID: parentRunID,
		ChildGraphID: childGraphID, ChildNodeID: childNodeID, ChildRunID: childRunID,
		Depth: depth, OutputMapping: mapping,
	}, true
}

// pushCheckpointFrame returns a copy of msg with frame prepended
// (outermost first) to its subgraph stack.
func pushCheckpointFrame(msg Message, frame SubgraphCheckpointContext) Message {
	stack := checkpointStack(msg)
	next := append([]any{frame.encode()}, stack...)
	return msg.WithMeta(metaSubgraphStack, next)
}

// checkpointStack reads the raw stack slice from metadata, or nil.
func checkpointStack(msg Message) []any {
	raw, ok := msg.Meta[metaSubgraphStack]
	if !ok {
		return nil
	}
	stack, _ := raw.([]any)
	return stack
}

// popCheckpointFrame returns the outermost frame and a copy of msg with
// it removed, or ok=false if the stack is empty or malformed.
func popCheckpointFrame(msg Message) (SubgraphCheckpointContext, Message, bool) {
	stack := checkpointStack(msg)
	if len(stack) == 0 {
		return SubgraphCheckpointContext{}, msg, false
	}
	frame, ok := decodeCheckpointFrame(stack[0])
	if !ok {
		return SubgraphCheckpointContext{}, msg, false
	}
	rest := stack[1:]
	next := msg.WithMeta(metaSubgraphStack, rest)
	return frame, next, true
}

// hasCheckpointStack reports whether msg carries any subgraph frames.
func hasCheckpointStack(msg Message) bool {
	return len(checkpointStack(msg)) > 0
}
