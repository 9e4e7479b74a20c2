// Copyright 2025 Certen Protocol
//
// Block Builder outer state machine, per kind (registration,
// non-registration), per spec.md §4.5. Grounded on
// pkg/proof/lifecycle.go's ProofState/ValidTransitions pattern, repurposed
// from a six-state proof ladder to the three-state
// Pausing/AcceptingTxs/ProposingBlock cycle.

package blockbuilder

import "fmt"

// BuilderState is one outer-loop state for a single block kind.
type BuilderState string

const (
	StatePausing        BuilderState = "pausing"
	StateAcceptingTxs   BuilderState = "accepting_txs"
	StateProposingBlock BuilderState = "proposing_block"
)

// StateTransition is a single allowed (from, to) edge, labeled with the
// event that triggers it (spec.md's diagram: start_accepting_txs,
// construct_block, post_block, reset/error).
type StateTransition struct {
	From  BuilderState
	To    BuilderState
	Event string
}

// ValidTransitions enumerates the builder's outer loop.
var ValidTransitions = []StateTransition{
	{StatePausing, StateAcceptingTxs, "start_accepting_txs"},
	{StateAcceptingTxs, StateProposingBlock, "construct_block"},
	{StateProposingBlock, StatePausing, "post_block"},
	// reset / error: back to Pausing from any in-flight state.
	{StateAcceptingTxs, StatePausing, "reset_or_error"},
	{StateProposingBlock, StatePausing, "reset_or_error"},
}

func isValidTransition(from, to BuilderState, event string) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to && t.Event == event {
			return true
		}
	}
	return false
}

// KindStateMachine tracks the outer state for one block kind
// (registration or non-registration), guarding transitions the way
// pkg/proof/lifecycle.go's ProofLifecycleManager.TransitionState does.
type KindStateMachine struct {
	kind  Kind
	state BuilderState
}

// NewKindStateMachine starts a kind's state machine in Pausing.
func NewKindStateMachine(kind Kind) *KindStateMachine {
	return &KindStateMachine{kind: kind, state: StatePausing}
}

// State returns the current state.
func (k *KindStateMachine) State() BuilderState { return k.state }

// Transition moves to newState via event, rejecting edges absent from
// ValidTransitions.
func (k *KindStateMachine) Transition(event string, newState BuilderState) error {
	if !isValidTransition(k.state, newState, event) {
		return fmt.Errorf("blockbuilder: invalid transition %s -(%s)-> %s for kind %s", k.state, event, newState, k.kind)
	}
	k.state = newState
	return nil
}
