package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow/graphcore/graph"
)

func classifierBranch(id, verdict string) graph.Node {
	return graph.NewNodeFunc(id, func(_ context.Context, msg graph.Message) graph.Result[graph.Message] {
		return graph.Success(msg.WithContent(verdict))
	})
}

// TestParallelVoteMergeMajority reproduces spec.md §8 scenario 6: three
// branches classify an input as "cat", "cat", "dog"; MergeNode applies
// AggVote and the majority value wins.
func TestParallelVoteMergeMajority(t *testing.T) {
	branches := map[string]graph.Node{
		"a": classifierBranch("a", "cat"),
		"b": classifierBranch("b", "cat"),
		"c": classifierBranch("c", "dog"),
	}
	par := graph.NewParallelNode("classify", branches, []string{"a", "b", "c"}, graph.MergePolicy{Kind: graph.MergeNamespace}, false)
	merge := graph.NewMergeNode("vote", "classify", graph.AggVote, nil)

	g, err := graph.NewGraphBuilder("vote-graph").
		AddNode(par).
		AddNode(merge).
		AddEdge(graph.Edge{From: "classify", To: "vote"}).
		EntryPoint("classify").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	runner, _ := graph.NewRunner()
	res := runner.Execute(context.Background(), g, graph.NewMessage("a photo", "user"))
	if !res.Ok() {
		t.Fatalf("execute failed: %v", res.Err())
	}
	out := res.Value()
	if out.Content != "cat" {
		t.Fatalf("content = %q, want cat (majority vote)", out.Content)
	}
	if out.Data["merge_result"] != "cat" {
		t.Fatalf("merge_result = %v, want cat", out.Data["merge_result"])
	}
}

// TestParallelVoteTieBreaksByBranchOrder covers the tie case: two
// distinct values each appear once, so the first branch-id in sorted
// order wins (spec.md §4.4, §8).
func TestParallelVoteTieBreaksByBranchOrder(t *testing.T) {
	branches := map[string]graph.Node{
		"a": classifierBranch("a", "dog"),
		"b": classifierBranch("b", "cat"),
	}
	par := graph.NewParallelNode("classify", branches, []string{"a", "b"}, graph.MergePolicy{Kind: graph.MergeNamespace}, false)
	merge := graph.NewMergeNode("vote", "classify", graph.AggVote, nil)

	g, err := graph.NewGraphBuilder("tie-graph").
		AddNode(par).
		AddNode(merge).
		AddEdge(graph.Edge{From: "classify", To: "vote"}).
		EntryPoint("classify").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	runner, _ := graph.NewRunner()
	res := runner.Execute(context.Background(), g, graph.NewMessage("x", "user"))
	if !res.Ok() {
		t.Fatalf("execute failed: %v", res.Err())
	}
	if res.Value().Content != "dog" {
		t.Fatalf("content = %q, want dog (first branch-id alphabetically on tie)", res.Value().Content)
	}
}

// TestParallelFailFastPropagatesFirstError confirms failFast=true fails
// the whole ParallelNode as soon as any branch errors, rather than
// collecting partial results.
func TestParallelFailFastPropagatesFirstError(t *testing.T) {
	ok := classifierBranch("ok", "fine")
	broken := graph.NewNodeFunc("broken", func(_ context.Context, _ graph.Message) graph.Result[graph.Message] {
		return graph.Failure[graph.Message](errors.New("branch exploded"))
	})
	par := graph.NewParallelNode("par", map[string]graph.Node{"ok": ok, "broken": broken}, nil, graph.MergePolicy{Kind: graph.MergeNamespace}, true)

	res := par.Run(context.Background(), graph.NewMessage("in", "user"))
	if res.Ok() {
		t.Fatal("expected failure when failFast=true and a branch errors")
	}
}

// TestParallelNoFailFastSkipsErroredBranches confirms failFast=false
// collects the surviving branches' outputs rather than failing the
// whole node.
func TestParallelNoFailFastSkipsErroredBranches(t *testing.T) {
	ok := classifierBranch("ok", "fine")
	broken := graph.NewNodeFunc("broken", func(_ context.Context, _ graph.Message) graph.Result[graph.Message] {
		return graph.Failure[graph.Message](errors.New("branch exploded"))
	})
	par := graph.NewParallelNode("par", map[string]graph.Node{"ok": ok, "broken": broken}, nil, graph.MergePolicy{Kind: graph.MergeNamespace}, false)

	res := par.Run(context.Background(), graph.NewMessage("in", "user"))
	if !res.Ok() {
		t.Fatalf("expected success with partial results, got %v", res.Err())
	}
	branchValues, ok2 := res.Value().Data["par"].(map[string]any)
	if !ok2 {
		t.Fatalf("Data[par] = %v, want map", res.Value().Data["par"])
	}
	if _, present := branchValues["broken"]; present {
		t.Fatal("errored branch should not appear in the collected branch values")
	}
	if branchValues["ok"] != "fine" {
		t.Fatalf("ok branch value = %v, want fine", branchValues["ok"])
	}
}

// TestMergeNodeNumericAggregators exercises AggSum/AggAverage/AggMin/
// AggMax against a fixed set of branch values.
func TestMergeNodeNumericAggregators(t *testing.T) {
	values := map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}
	msg := graph.NewMessage("x", "user").WithData("par", values)

	cases := []struct {
		agg  graph.Aggregator
		want float64
	}{
		{graph.AggSum, 6.0},
		{graph.AggAverage, 2.0},
		{graph.AggMin, 1.0},
		{graph.AggMax, 3.0},
	}
	for _, tc := range cases {
		merge := graph.NewMergeNode("m", "par", tc.agg, nil)
		res := merge.Run(context.Background(), msg)
		if !res.Ok() {
			t.Fatalf("agg %v: merge failed: %v", tc.agg, res.Err())
		}
		got := res.Value().Data["merge_result"]
		if got != tc.want {
			t.Fatalf("agg %v: merge_result = %v, want %v", tc.agg, got, tc.want)
		}
	}
}

// TestMergeNodeCustomMergerOverridesAggregator confirms a supplied
// merger function takes priority over the Aggregator field.
func TestMergeNodeCustomMergerOverridesAggregator(t *testing.T) {
	values := map[string]any{"a": "x", "b": "y"}
	msg := graph.NewMessage("in", "user").WithData("par", values)
	merge := graph.NewMergeNode("m", "par", graph.AggFirst, func(bv map[string]any) any {
		return bv["b"]
	})
	res := merge.Run(context.Background(), msg)
	if !res.Ok() {
		t.Fatalf("merge failed: %v", res.Err())
	}
	if res.Value().Data["merge_result"] != "y" {
		t.Fatalf("merge_result = %v, want y (custom merger)", res.Value().Data["merge_result"])
	}
}

// TestMergeNodeMissingParallelResultsFails confirms a MergeNode whose
// parallelID was never populated fails rather than silently no-op'ing.
func TestMergeNodeMissingParallelResultsFails(t *testing.T) {
	merge := graph.NewMergeNode("m", "nonexistent", graph.AggVote, nil)
	res := merge.Run(context.Background(), graph.NewMessage("in", "user"))
	if res.Ok() {
		t.Fatal("expected failure when no parallel results are present")
	}
}
