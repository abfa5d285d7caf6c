// Package automation holds the pipeline state machine, the work queue
// item and the processing log for the risk automation flow.
package automation

import (
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// State of a work item as it moves through the pipeline.
//
//	Pending → Processing → Analyzed → ActionPlanned → Notified → Done
//	                               ↘ Skipped ───────↗        ↘
//	Failed is reachable from any non-terminal state; a retryable
//	failure re-enters Pending until attempts run out.
type State string

const (
	StatePending       State = "pending"
	StateProcessing    State = "processing"
	StateAnalyzed      State = "analyzed"
	StateActionPlanned State = "action_planned"
	StateSkipped       State = "skipped"
	StateNotified      State = "notified"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether the state ends the pipeline.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StatePending:       {StateProcessing},
	StateProcessing:    {StateAnalyzed},
	StateAnalyzed:      {StateActionPlanned, StateSkipped},
	StateActionPlanned: {StateNotified},
	StateSkipped:       {StateNotified, StateDone},
	StateNotified:      {StateDone},
}

// CanTransition reports whether from → to is a legal move. Any
// non-terminal state may move to Failed, and Failed may re-enter
// Pending for a retry.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	if from == StateFailed && to == StatePending {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an AUT_004 error for illegal moves.
func ValidateTransition(from, to State) error {
	if !CanTransition(from, to) {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"illegal transition %s -> %s", from, to)
	}
	return nil
}
