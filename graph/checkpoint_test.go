package graph

import (
	"reflect"
	"testing"
)

func TestCheckpointFramePushPopRoundTrip(t *testing.T) {
	msg := NewMessage("in", "user")
	frame := SubgraphCheckpointContext{
		ParentNodeID:  "sub",
		ParentGraphID: "parent",
		ParentRunID:   "run-1",
		ChildGraphID:  "child",
		ChildNodeID:   "inner",
		ChildRunID:    "run-1-child",
		OutputMapping: map[string]string{"result": "childResult"},
		Depth:         1,
	}

	withFrame := pushCheckpointFrame(msg, frame)
	if !hasCheckpointStack(withFrame) {
		t.Fatal("expected checkpoint stack to be non-empty after push")
	}

	popped, stripped, ok := popCheckpointFrame(withFrame)
	if !ok {
		t.Fatal("expected pop to succeed")
	}
	if !reflect.DeepEqual(popped, frame) {
		t.Fatalf("popped frame = %+v, want %+v", popped, frame)
	}
	if hasCheckpointStack(stripped) {
		t.Fatal("expected stack to be empty after popping the only frame")
	}
}

func TestCheckpointFrameStackOrderingIsOutermostFirst(t *testing.T) {
	msg := NewMessage("in", "user")
	outer := SubgraphCheckpointContext{ParentNodeID: "outer", Depth: 2, OutputMapping: map[string]string{}}
	inner := SubgraphCheckpointContext{ParentNodeID: "inner", Depth: 1, OutputMapping: map[string]string{}}

	// The innermost SubgraphNode returns first and pushes its frame
	// first; each enclosing SubgraphNode then pushes its own on top.
	withInner := pushCheckpointFrame(msg, inner)
	withBoth := pushCheckpointFrame(withInner, outer)

	first, rest, ok := popCheckpointFrame(withBoth)
	if !ok {
		t.Fatal("expected pop to succeed")
	}
	if first.ParentNodeID != "outer" {
		t.Fatalf("expected the outermost frame to pop first, got %q", first.ParentNodeID)
	}
	second, _, ok := popCheckpointFrame(rest)
	if !ok {
		t.Fatal("expected second pop to succeed")
	}
	if second.ParentNodeID != "inner" {
		t.Fatalf("expected the innermost frame to pop last, got %q", second.ParentNodeID)
	}
}

func TestDecodeCheckpointFrameFromGenericMap(t *testing.T) {
	frame := SubgraphCheckpointContext{
		ParentNodeID: "p", ParentGraphID: "pg", ParentRunID: "pr",
		ChildGraphID: "cg", ChildNodeID: "cn", ChildRunID: "cr",
		Depth: 3, OutputMapping: map[string]string{"a": "b"},
	}
	encoded := frame.encode()

	// Simulate a JSON round-trip, where ints become float64 and the
	// frame arrives as its generic map[string]any shape rather than the
	// native struct.
	encoded["depth"] = float64(encoded["depth"].(int))

	decoded, ok := decodeCheckpointFrame(encoded)
	if !ok {
		t.Fatal("expected generic map to decode successfully")
	}
	if !reflect.DeepEqual(decoded, frame) {
		t.Fatalf("decoded = %+v, want %+v", decoded, frame)
	}
}

func TestDecodeCheckpointFrameRejectsMalformedInput(t *testing.T) {
	if _, ok := decodeCheckpointFrame("not a frame"); ok {
		t.Fatal("expected a plain string to fail decoding")
	}
	if _, ok := decodeCheckpointFrame(map[string]any{"parentNodeId": "p"}); ok {
		t.Fatal("expected a map missing required fields to fail decoding")
	}
}

func TestPopCheckpointFrameOnEmptyStackFails(t *testing.T) {
	msg := NewMessage("in", "user")
	if _, _, ok := popCheckpointFrame(msg); ok {
		t.Fatal("expected pop on an empty stack to fail")
	}
}
