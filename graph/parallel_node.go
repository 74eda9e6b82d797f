package graph

import (
	"context"
	"sort"
	"sync"
)

// MergeKind selects how ParallelNode reconciles per-branch metadata
// (spec.md §4.4).
type MergeKind int

const (
	MergeNamespace MergeKind = iota
	MergeLastWrite
	MergeFirstWrite
	MergeCustom
)

// Aggregator is one named reduction MergeCustom applies per metadata
// key (spec.md §4.4).
type Aggregator int

const (
	AggAverage Aggregator = iota
	AggSum
	AggVote
	AggMin
	AggMax
	AggFirst
	AggLast
	AggConcatList
)

// MergePolicy configures how ParallelNode reconciles branch outputs into
// the message that continues past it.
type MergePolicy struct {
	Kind        MergeKind
	Aggregators map[string]Aggregator // per metadata key, only used when Kind == MergeCustom
}

// branchResult is one ParallelNode branch's outcome.
type branchResult struct {
	branchID string
	msg      Message
	err      error
}

// ParallelNode runs a labelled set of child nodes concurrently and
// merges their branch metadata according to Policy (spec.md §4.4).
// Per-branch results are additionally stored under
// msg.Data[ID()] = map[branchID]any so a following MergeNode can apply
// its own reduction.
type ParallelNode struct {
	id       string
	branches map[string]Node
	order    []string
	policy   MergePolicy
	failFast bool
}

// NewParallelNode builds a ParallelNode running all branches
// concurrently. order is stored on the node but Run does not read it;
// aggregators break ties by sorted branch id.
func NewParallelNode(id string, branches map[string]Node, order []string, policy MergePolicy, failFast bool) *ParallelNode {
	return &ParallelNode{id: id, branches: branches, order: order, policy: policy, failFast: failFast}
}

func (n *ParallelNode) ID() string { return n.id }

func (n *ParallelNode) Run(ctx context.Context, msg Message) Result[Message] {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan branchResult, len(n.branches))
	var wg sync.WaitGroup
	for branchID, node := range n.branches {
		branchID, node := branchID, node
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := node.Run(branchCtx, msg)
			if res.Ok() {
				results <- branchResult{branchID: branchID, msg: res.Value()}
				return
			}
			results <- branchResult{branchID: branchID, err: res.Err()}
			if n.failFast {
				cancel()
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]branchResult, len(n.branches))
	for r := range results {
		collected[r.branchID] = r
	}

	if n.failFast {
		for _, r := range collected {
			if r.err != nil {
				return Failure[Message](ErrExecution("parallel branch failed").WithContext("nodeId", n.id).WithContext("branchId", r.branchID).WithCause(r.err))
			}
		}
	}

	branchValues := make(map[string]any, len(collected))
	out := msg
	for branchID, r := range collected {
		if r.err != nil {
			continue // skipped with partial results, per failFast=false semantics
		}
		branchValues[branchID] = r.msg.Content
		out = n.mergeBranch(out, branchID, r.msg)
	}
	if n.policy.Kind == MergeCustom {
		for key, agg := range n.policy.Aggregators {
			values := make(map[string]any, len(collected))
			for branchID, r := range collected {
				if v, ok := r.msg.Meta[key]; ok && r.err == nil {
					values[branchID] = v
				}
			}
			if len(values) > 0 {
				out = out.WithMeta(key, aggregate(agg, values))
			}
		}
	}
	out = out.WithData(n.id, branchValues)
	return Success(out)
}

// mergeBranch folds one branch's metadata into out according to Policy.
func (n *ParallelNode) mergeBranch(out Message, branchID string, branchMsg Message) Message {
	switch n.policy.Kind {
	case MergeNamespace:
		for k, v := range branchMsg.Meta {
			out = out.WithMeta(n.id+"."+branchID+"."+k, v)
		}
	case MergeLastWrite:
		for k, v := range branchMsg.Meta {
			out = out.WithMeta(k, v)
		}
	case MergeFirstWrite:
		for k, v := range branchMsg.Meta {
			if _, exists := out.Meta[k]; !exists {
				out = out.WithMeta(k, v)
			}
		}
	case MergeCustom:
		// Aggregation needs every branch's value, so Run applies
		// Aggregators after all branches have been collected.
	}
	return out
}

// MergeNode consumes msg.Data[parallelId] (written by a preceding
// ParallelNode) and applies Aggregator per key, or a user Merger
// function when one is supplied (spec.md §4.4).
type MergeNode struct {
	id         string
	parallelID string
	aggregator Aggregator
	merger     func(branchValues map[string]any) any
}

// NewMergeNode builds a node reducing the named ParallelNode's branch
// values with agg. Pass a non-nil merger to override agg with custom
// logic.
func NewMergeNode(id, parallelID string, agg Aggregator, merger func(map[string]any) any) *MergeNode {
	return &MergeNode{id: id, parallelID: parallelID, aggregator: agg, merger: merger}
}

func (n *MergeNode) ID() string { return n.id }

func (n *MergeNode) Run(_ context.Context, msg Message) Result[Message] {
	raw, ok := msg.Data[n.parallelID]
	branchValues, okMap := raw.(map[string]any)
	if !ok || !okMap {
		return Failure[Message](ErrExecution("merge node found no parallel results").WithContext("nodeId", n.id).WithContext("parallelId", n.parallelID))
	}

	var result any
	if n.merger != nil {
		result = n.merger(branchValues)
	} else {
		result = aggregate(n.aggregator, branchValues)
	}

	text, isString := result.(string)
	if !isString {
		text = msg.Content
	}
	out := msg.WithContent(text).WithData("merge_result", result)
	return Success(out)
}

func aggregate(agg Aggregator, values map[string]any) any {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	switch agg {
	case AggFirst:
		if len(ids) == 0 {
			return nil
		}
		return values[ids[0]]
	case AggLast:
		if len(ids) == 0 {
			return nil
		}
		return values[ids[len(ids)-1]]
	case AggConcatList:
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			out = append(out, values[id])
		}
		return out
	case AggVote:
		return vote(ids, values)
	case AggSum, AggAverage, AggMin, AggMax:
		return numericAggregate(agg, ids, values)
	default:
		if len(ids) == 0 {
			return nil
		}
		return values[ids[0]]
	}
}

// vote selects the strict-majority value, or the first tied value by
// branch-id order (spec.md §4.4, §8).
func vote(ids []string, values map[string]any) any {
	counts := make(map[any]int)
	firstSeen := make(map[any]string)
	for _, id := range ids {
		v := values[id]
		counts[v]++
		if _, ok := firstSeen[v]; !ok {
			firstSeen[v] = id
		}
	}
	var best any
	bestCount := -1
	bestFirst := ""
	for v, c := range counts {
		first := firstSeen[v]
		if c > bestCount || (c == bestCount && first < bestFirst) {
			best, bestCount, bestFirst = v, c, first
		}
	}
	return best
}

func numericAggregate(agg Aggregator, ids []string, values map[string]any) any {
	var sum, min, max float64
	count := 0
	for _, id := range ids {
		f, ok := toFloat64(values[id])
		if !ok {
			continue
		}
		if count == 0 || f < min {
			min = f
		}
		if count == 0 || f > max {
			max = f
		}
		sum += f
		count++
	}
	if count == 0 {
		return nil
	}
	switch agg {
	case AggSum:
		return sum
	case AggAverage:
		return sum / float64(count)
	case AggMin:
		return min
	case AggMax:
		return max
	default:
		return nil
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
