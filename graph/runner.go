package graph

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow/graphcore/graph/emit"
)

// Runner is the orchestration loop (spec.md §4.12). A Runner is
// stateless beyond its configuration and safe to share across
// concurrent Execute/Resume calls against different Graphs; nothing in
// a run mutates the Runner or the Graph it operates on.
type Runner struct {
	cfg runnerConfig
}

// NewRunner builds a Runner from functional options. Retry is enabled
// by default unless overridden by WithRetryEnabledByDefault(false).
func NewRunner(opts ...Option) (*Runner, error) {
	cfg := runnerConfig{retryEnabledByDefault: true}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Runner{cfg: cfg}, nil
}

// Execute runs graph starting from msg, which must be in the READY
// state.
func (r *Runner) Execute(ctx context.Context, g *Graph, msg Message) Result[Message] {
	return r.execute(ctx, g, msg)
}

// Resume re-enters a WAITING message, continuing either the parent
// flow or a nested subgraph HITL frame.
func (r *Runner) Resume(ctx context.Context, g *Graph, msg Message) Result[Message] {
	return r.resume(ctx, g, msg)
}

// ResumeFromCheckpoint loads the latest snapshot for runID from the
// runner's configured CheckpointStore and continues the node loop from
// the edge following the node it was saved at (spec.md §6: "after a
// process restart, resume reads the latest checkpoint by runId and
// continues with the node following the saved CurrentNodeID").
func (r *Runner) ResumeFromCheckpoint(ctx context.Context, g *Graph, runID string) Result[Message] {
	policy := r.cfg.checkpointPolicy
	if policy == nil || policy.Store == nil {
		return Failure[Message](ErrExecution("no checkpoint store configured on this runner"))
	}
	snap, found, err := policy.Store.LoadLatest(ctx, runID)
	if err != nil {
		return Failure[Message](ErrExecution("checkpoint load failed").WithCause(err))
	}
	if !found {
		return Failure[Message](ErrLookup("no checkpoint found for run").WithContext("runId", runID))
	}
	im := newIdempotencyManager(g.IdempotencyStore, g.CachePolicy)
	return r.continueAfterNode(ctx, g, snap.CurrentNodeID, snap.Message, im)
}

// execute implements the seven setup steps of spec.md §4.12 before
// handing off to the node loop.
func (r *Runner) execute(ctx context.Context, g *Graph, msg Message) Result[Message] {
	if err := Validate(g); err != nil {
		return Failure[Message](err)
	}
	if err := r.validateMessage(msg); err != nil {
		return Failure[Message](err)
	}

	recordIntentVector(ctx, g.VectorCache, g.CachePolicy.IntentTTL, msg)

	if msg.State.IsTerminal() {
		return Failure[Message](ErrValidation("message already in a terminal state").
			WithContext("state", msg.State.String()))
	}
	running, err := transition(msg, StateRunning, "run started", "")
	if err != nil {
		return Failure[Message](err)
	}
	if err := ensureHistoryValid(running); err != nil {
		return Failure[Message](err)
	}

	runID := running.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	running = running.WithGraphContext(g.ID, "", runID)

	r.publishLifecycle(ctx, g, graphTopic(g.ID, "started"), "graph.started", "", running)

	im := newIdempotencyManager(g.IdempotencyStore, g.CachePolicy)
	return r.nodeLoop(ctx, g, im, running, g.EntryPoint)
}

// resume implements spec.md §4.12's resume pipeline: reject non-WAITING
// messages, delegate to the subgraph protocol when a checkpoint stack
// is present, else continue the parent flow from the edge following
// the stored node id.
func (r *Runner) resume(ctx context.Context, g *Graph, msg Message) Result[Message] {
	if msg.State != StateWaiting {
		return Failure[Message](ErrValidation("resume requires a message in the WAITING state").
			WithContext("state", msg.State.String()))
	}
	if hasCheckpointStack(msg) {
		return resumeSubgraphFrame(ctx, r, g, msg)
	}

	nodeID := msg.NodeID
	running, err := transition(msg, StateRunning, "resumed", nodeID)
	if err != nil {
		return Failure[Message](err)
	}

	im := newIdempotencyManager(g.IdempotencyStore, g.CachePolicy)
	return r.continueAfterNode(ctx, g, nodeID, running, im)
}

// continueAfterNode selects the edge following nodeID and resumes the
// node loop at the next node, without re-dispatching nodeID. Used both
// by resume (continuing a WAITING parent) and by the subgraph-HITL
// protocol's state-machine bypass (spec.md §9): a SubgraphNode whose
// child has just completed is treated as "already dispatched" and the
// loop simply picks up at its successor.
func (r *Runner) continueAfterNode(ctx context.Context, g *Graph, nodeID string, msg Message, im *idempotencyManager) Result[Message] {
	nextID, result, done := r.branch(ctx, g, nodeID, msg)
	if done {
		return result
	}
	return r.nodeLoop(ctx, g, im, msg, nextID)
}

// nodeLoop is the per-node iteration of spec.md §4.12's node loop. It
// runs until a terminal state, a WAITING pause, or a loop-ending error.
func (r *Runner) nodeLoop(ctx context.Context, g *Graph, im *idempotencyManager, msg Message, startNodeID string) Result[Message] {
	current := msg
	currentNodeID := startNodeID
	nodesSinceSnapshot := 0
	lastSnapshotAt := time.Now()

	for {
		node, ok := g.Nodes[currentNodeID]
		if !ok {
			return Failure[Message](ErrExecution("unknown node id").WithContext("nodeId", currentNodeID))
		}
		current = current.WithNodeID(currentNodeID)

		if cached, hit := im.probe(ctx, currentNodeID, current); hit {
			r.cfg.metrics.observeIdempotency(g.ID, "hit")
			after, err := runAfterChain(ctx, g.Middleware, cached)
			if err != nil {
				return r.fail(ctx, g, current, err)
			}
			r.maybeSnapshot(ctx, g, currentNodeID, after, &nodesSinceSnapshot, &lastSnapshotAt)
			nextID, result, done := r.branch(ctx, g, currentNodeID, after)
			if done {
				return result
			}
			currentNodeID = nextID
			current = after
			continue
		}
		r.cfg.metrics.observeIdempotency(g.ID, "miss")

		r.publishLifecycle(ctx, g, nodeTopic(g.ID, currentNodeID, "started"), "node.started", currentNodeID, current)

		before, err := runBeforeChain(ctx, g.Middleware, current)
		if err != nil {
			return r.fail(ctx, g, current, err)
		}

		start := time.Now()
		dispatchResult := r.dispatchWithRetry(ctx, g, node, before)
		durationMs := float64(time.Since(start).Milliseconds())

		if !dispatchResult.Ok() {
			r.cfg.metrics.observeNode(g.ID, currentNodeID, "failed", durationMs)
			dispatchErr := dispatchResult.Err()
			verdict := runOnErrorChain(ctx, g.Middleware, dispatchErr, before)
			switch verdict.Kind {
			case ActionSkip:
				r.maybeSnapshot(ctx, g, currentNodeID, before, &nodesSinceSnapshot, &lastSnapshotAt)
				nextID, result, done := r.finishNode(ctx, g, currentNodeID, before)
				if done {
					return result
				}
				currentNodeID = nextID
				current = before
				continue
			case ActionRetry:
				current = before
				continue
			case ActionFallback:
				after, err := runAfterChain(ctx, g.Middleware, verdict.Fallback)
				if err != nil {
					return r.fail(ctx, g, verdict.Fallback, err)
				}
				im.commit(ctx, currentNodeID, before, after)
				r.publishToolCalls(ctx, g, currentNodeID, before, after)
				r.maybeSnapshot(ctx, g, currentNodeID, after, &nodesSinceSnapshot, &lastSnapshotAt)
				nextID, result, done := r.finishNode(ctx, g, currentNodeID, after)
				if done {
					return result
				}
				currentNodeID = nextID
				current = after
				continue
			default:
				return r.fail(ctx, g, before, dispatchErr)
			}
		}

		r.cfg.metrics.observeNode(g.ID, currentNodeID, "success", durationMs)
		out := dispatchResult.Value()

		after, err := runAfterChain(ctx, g.Middleware, out)
		if err != nil {
			return r.fail(ctx, g, out, err)
		}
		if err := ensureHistoryValid(after); err != nil {
			return Failure[Message](err)
		}

		im.commit(ctx, currentNodeID, before, after)
		r.publishToolCalls(ctx, g, currentNodeID, before, after)
		r.maybeSnapshot(ctx, g, currentNodeID, after, &nodesSinceSnapshot, &lastSnapshotAt)

		nextID, result, done := r.finishNode(ctx, g, currentNodeID, after)
		if done {
			return result
		}
		currentNodeID = nextID
		current = after
	}
}

// finishNode publishes node.completed for a node that has just
// actually dispatched (spec.md §4.12 step 7), then delegates to branch
// for the WAITING/terminal/next-edge decision. The idempotency
// cache-hit path and resume's continuation skip this publish — spec.md
// §4.12 step 3 never mentions a node.completed republish for either.
func (r *Runner) finishNode(ctx context.Context, g *Graph, currentNodeID string, after Message) (nextNodeID string, result Result[Message], done bool) {
	r.publishLifecycle(ctx, g, nodeTopic(g.ID, currentNodeID, "completed"), "node.completed", currentNodeID, after)
	return r.branch(ctx, g, currentNodeID, after)
}

// branch pauses on WAITING, finishes on a terminal state, or selects
// the next node id. done is true whenever the caller should return
// result instead of continuing the loop.
func (r *Runner) branch(ctx context.Context, g *Graph, currentNodeID string, after Message) (nextNodeID string, result Result[Message], done bool) {
	if after.State == StateWaiting {
		r.publishLifecycle(ctx, g, hitlTopic(g.ID, currentNodeID), "hitl.requested", currentNodeID, after)
		return "", Success(after), true
	}
	if after.State.IsTerminal() {
		r.publishGraphTerminal(ctx, g, after)
		return "", Success(after), true
	}

	next := selectNextNode(g, currentNodeID, after)
	if next == "" {
		completed, err := transition(after, StateCompleted, "no more nodes", currentNodeID)
		if err != nil {
			return "", Failure[Message](err), true
		}
		r.publishGraphTerminal(ctx, g, completed)
		return "", Success(completed), true
	}
	return next, Result[Message]{}, false
}

// dispatchWithRetry wraps a node's dispatch in the runner's retry
// supervisor, honoring the per-graph retry policy (or the runner's
// default) and the runner's default node timeout. Every node type goes
// through retry; only the dispatch mechanism underneath varies by type
// (spec.md §4.12 step 6).
func (r *Runner) dispatchWithRetry(ctx context.Context, g *Graph, node Node, msg Message) Result[Message] {
	policy := r.retryPolicyFor(g)
	rng := rand.New(rand.NewSource(runSeed(msg.RunID)))

	attempts := 0
	body := func(ctx context.Context, attempt int) (Message, error) {
		attempts = attempt + 1
		return r.dispatchOnce(ctx, node, msg, attempt).Unwrap()
	}
	if r.cfg.defaultNodeTimeout > 0 {
		inner := body
		body = func(ctx context.Context, attempt int) (Message, error) {
			tm := TimeoutMiddleware{Timeout: r.cfg.defaultNodeTimeout}
			return tm.Wrap(ctx, node.ID(), func(c context.Context) (Message, error) {
				return inner(c, attempt)
			})
		}
	}

	outcome := executeWithRetry(ctx, rng, policy, body)
	if attempts > 1 {
		for i := 0; i < attempts-1; i++ {
			r.cfg.metrics.observeRetry(g.ID, node.ID())
		}
	}
	if outcome.Kind != RetrySucceeded {
		return Failure[Message](outcome.Err)
	}
	return Success(outcome.Message)
}

// dispatchOnce performs a single attempt, type-switching on the closed
// set of node variants the runner special-cases (spec.md §9): ToolNode
// resolves then invokes with the zero-based attempt number in its
// ToolInvocationContext, SubgraphNode recurses through this same
// Runner, everything else runs plainly. The recursion shares this
// Runner's options (default retry policy, node timeout, metrics,
// checkpointing, message validator); the child graph's nodes run with
// the child graph's own Middleware, RetryPolicy and
// ToolLifecycleListeners, not the parent graph's.
func (r *Runner) dispatchOnce(ctx context.Context, node Node, msg Message, attempt int) Result[Message] {
	switch n := node.(type) {
	case toolDispatcher:
		res := n.resolver().Resolve(msg)
		if !res.Ok() {
			return Failure[Message](res.Err())
		}
		if tn, ok := n.(*ToolNode); ok {
			return tn.dispatchToolAttempt(ctx, msg, res.Value(), attempt)
		}
		return n.dispatchTool(ctx, msg, res.Value())
	case subgraphDispatcher:
		return n.runWithRunner(ctx, msg, r)
	default:
		return node.Run(ctx, msg)
	}
}

// retryPolicyFor resolves the effective retry policy for g, applying
// spec.md §4.8's three-way default: an explicit Graph.RetryEnabled
// flag wins; else a non-nil Graph.RetryPolicy enables retry; else the
// Runner's configured default applies.
func (r *Runner) retryPolicyFor(g *Graph) *RetryPolicy {
	enabled := r.cfg.retryEnabledByDefault
	switch {
	case g.RetryEnabled != nil:
		enabled = *g.RetryEnabled
	case g.RetryPolicy != nil:
		enabled = true
	}
	if !enabled {
		return nil
	}
	if g.RetryPolicy != nil {
		return g.RetryPolicy
	}
	return r.cfg.defaultRetryPolicy
}

// validateMessage checks history legality and, if configured, runs the
// external pluggable schema validator (spec.md §4.12 step 2).
func (r *Runner) validateMessage(msg Message) error {
	if err := ensureHistoryValid(msg); err != nil {
		return err
	}
	if r.cfg.messageValidator != nil {
		if err := r.cfg.messageValidator(msg); err != nil {
			return ErrValidation("message failed external validation").WithCause(err)
		}
	}
	return nil
}

// fail transitions msg RUNNING->FAILED, appends an error-report tool
// call, publishes graph.failed, and returns Failure(cause) (spec.md §7:
// "a returned Failure(error) with context populated").
func (r *Runner) fail(ctx context.Context, g *Graph, msg Message, cause error) Result[Message] {
	failed, err := transition(msg, StateFailed, cause.Error(), msg.NodeID)
	if err != nil {
		return Failure[Message](err)
	}
	reported := failed.AppendToolCall(ToolCallRecord{Name: "error-report", Error: cause.Error()})
	r.snapshotNow(ctx, g, reported)
	r.publishGraphTerminal(ctx, g, reported)
	return Failure[Message](cause)
}

// maybeSnapshot asks the runner's CheckpointPolicy whether enough nodes
// or time have elapsed to persist a RunSnapshot, and if so saves one and
// resets the counters (spec.md §6).
func (r *Runner) maybeSnapshot(ctx context.Context, g *Graph, nodeID string, msg Message, nodesSinceSnapshot *int, lastSnapshotAt *time.Time) {
	policy := r.cfg.checkpointPolicy
	if policy == nil || policy.Store == nil {
		return
	}
	*nodesSinceSnapshot++
	if !policy.shouldSnapshot(*nodesSinceSnapshot, time.Since(*lastSnapshotAt)) {
		return
	}
	r.snapshotNow(ctx, g, msg)
	*nodesSinceSnapshot = 0
	*lastSnapshotAt = time.Now()
}

// snapshotNow unconditionally persists a RunSnapshot for msg, used both
// by maybeSnapshot's threshold-driven path and by fail's "snapshot on
// error" path (spec.md §6). Persistence failures never affect the run.
func (r *Runner) snapshotNow(ctx context.Context, g *Graph, msg Message) {
	policy := r.cfg.checkpointPolicy
	if policy == nil || policy.Store == nil {
		return
	}
	_ = policy.Store.Save(ctx, RunSnapshot{
		RunID:         msg.RunID,
		GraphID:       g.ID,
		Message:       msg,
		CurrentNodeID: msg.NodeID,
		SavedAt:       time.Now(),
	})
}

// publishGraphTerminal publishes the run's closing lifecycle event and
// records its outcome in metrics.
func (r *Runner) publishGraphTerminal(ctx context.Context, g *Graph, msg Message) {
	event := "completed"
	switch msg.State {
	case StateFailed:
		event = "failed"
	case StateCancelled:
		event = "cancelled"
	}
	r.publishLifecycle(ctx, g, graphTopic(g.ID, event), "graph."+event, msg.NodeID, msg)
	r.cfg.metrics.observeRunOutcome(g.ID, event)
}

// publishToolCalls publishes one ToolCallEvent per call appended to
// msg's ToolCalls since before (spec.md §4.12 step 7).
func (r *Runner) publishToolCalls(ctx context.Context, g *Graph, nodeID string, before, after Message) {
	if g.ToolCallEventBus == nil || len(after.ToolCalls) <= len(before.ToolCalls) {
		return
	}
	for _, tc := range after.ToolCalls[len(before.ToolCalls):] {
		_ = g.ToolCallEventBus.Publish(ctx, emit.ToolCallEvent{
			ToolCall:  tc,
			Message:   after,
			EmittedBy: nodeID,
			GraphID:   g.ID,
			RunID:     after.RunID,
			Timestamp: time.Now(),
		})
	}
}

// publishLifecycle publishes to g.EventBus when one is configured.
// Publication errors are discarded here and never fail the run
// (spec.md §7).
func (r *Runner) publishLifecycle(ctx context.Context, g *Graph, topic, event, nodeID string, msg Message) {
	if g.EventBus == nil {
		return
	}
	_ = g.EventBus.Publish(ctx, topic, emit.LifecycleEvent{
		Topic:     topic,
		Message:   msg,
		Event:     event,
		NodeID:    nodeID,
		Timestamp: time.Now(),
	})
}

func graphTopic(graphID, event string) string { return "graph." + graphID + "." + event }
func nodeTopic(graphID, nodeID, event string) string {
	return "node." + graphID + "." + nodeID + "." + event
}
func hitlTopic(graphID, nodeID string) string { return "hitl." + graphID + "." + nodeID + ".requested" }

// selectNextNode implements spec.md §4.12's edge-selection rule:
// collect edges leaving currentNodeId (or "*"), partition into
// regulars and fallbacks, sort each by ascending priority, and return
// the first regular edge whose condition matches, else the first
// matching fallback, else "".
func selectNextNode(g *Graph, currentNodeID string, msg Message) string {
	var regulars, fallbacks []Edge
	for _, e := range g.Edges {
		if e.From != currentNodeID && e.From != Wildcard {
			continue
		}
		if e.IsFallback {
			fallbacks = append(fallbacks, e)
		} else {
			regulars = append(regulars, e)
		}
	}
	sort.SliceStable(regulars, func(i, j int) bool { return regulars[i].Priority < regulars[j].Priority })
	sort.SliceStable(fallbacks, func(i, j int) bool { return fallbacks[i].Priority < fallbacks[j].Priority })

	for _, e := range regulars {
		if e.matches(msg) {
			return e.To
		}
	}
	for _, e := range fallbacks {
		if e.matches(msg) {
			return e.To
		}
	}
	return ""
}

// runSeed derives a deterministic rand seed from a run id, following
// the teacher's per-run RNG seeding pattern (graph/engine.go's initRNG)
// without needing the teacher's replay-log machinery.
func runSeed(runID string) int64 {
	if runID == "" {
		return 1
	}
	var seed int64 = 1469598103934665603 // FNV offset basis
	for _, b := range []byte(runID) {
		seed ^= int64(b)
		seed *= 1099511628211 // FNV prime
	}
	if seed < 0 {
		seed = -seed
	}
	return seed
}
