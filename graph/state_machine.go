package graph

import "time"

// legalTransitions is the state-machine edge table from spec.md §3:
//
//	READY    -> RUNNING, CANCELLED
//	RUNNING  -> WAITING, COMPLETED, FAILED, CANCELLED
//	WAITING  -> RUNNING, CANCELLED
//	terminal -> (none)
//
// Same-state identity transitions are never legal here; re-stamping a
// node ID onto a Message without changing State must go through
// Message.WithNodeID, not transition(), per the open-question resolution
// in spec.md §9.
var legalTransitions = map[ExecutionState]map[ExecutionState]bool{
	StateReady:   {StateRunning: true, StateCancelled: true},
	StateRunning: {StateWaiting: true, StateCompleted: true, StateFailed: true, StateCancelled: true},
	StateWaiting: {StateRunning: true, StateCancelled: true},
}

func isLegalTransition(from, to ExecutionState) bool {
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// transition advances msg from its current state to target, appending a
// history entry. It rejects illegal transitions (including same-state
// identity transitions, which this table never permits) with a
// Validation error.
func transition(msg Message, target ExecutionState, reason, nodeID string) (Message, error) {
	if !isLegalTransition(msg.State, target) {
		return msg, ErrValidation("illegal state transition").
			WithContext("from", msg.State.String()).
			WithContext("to", target.String())
	}
	next := msg.clone()
	next.State = target
	next.StateHistory = append(next.StateHistory, StateTransition{
		From:      msg.State,
		To:        target,
		Reason:    reason,
		NodeID:    nodeID,
		Timestamp: time.Now(),
	})
	return next, nil
}

// ensureHistoryValid walks msg.StateHistory and verifies every recorded
// pair is either the synthetic first entry (same->same, only legal for
// the very first entry) or a legal edge of the state machine.
func ensureHistoryValid(msg Message) error {
	for i, t := range msg.StateHistory {
		if i == 0 {
			if t.From != t.To {
				return ErrValidation("history must begin with a synthetic same-state entry").
					WithContext("index", "0")
			}
			continue
		}
		if !isLegalTransition(t.From, t.To) {
			return ErrValidation("illegal transition in history").
				WithContext("from", t.From.String()).
				WithContext("to", t.To.String())
		}
	}
	return nil
}
