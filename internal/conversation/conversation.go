// Package conversation implements the per-session state transitions of the
// mediation engine: instruction-change reset, turn recording, and the
// invariants connecting attempt count, comprehension history, and the
// failed-strategy set.
//
// The functions here are pure state transforms; persistence and per-session
// serialization are the engine's responsibility.
package conversation

import (
	"time"

	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// BeginTurn prepares state for a turn on instruction. When the instruction
// differs from the state's current one, the session record is reset: failed
// strategies, history, attempt count, and current strategy are cleared and
// the last comprehension returns to initial. Calling BeginTurn twice with the
// same instruction is a no-op. Reports whether a reset occurred.
func BeginTurn(state *store.ConversationState, instruction string, now time.Time) bool {
	if state.CurrentInstruction == instruction {
		return false
	}

	state.FailedStrategies = nil
	state.ComprehensionHistory = nil
	state.LastComprehension = types.ComprehensionInitial
	state.CurrentStrategy = ""
	state.AttemptCount = 0
	state.CurrentInstruction = instruction
	state.UpdatedAt = now
	return true
}

// Record appends the turn outcome to state: the comprehension label joins the
// history, the attempt counter increments, and the strategy becomes current.
// When the learner was confused and the strategy is a real pedagogical one,
// the strategy also joins the failed set. Synthetic outcomes and
// teacher_escalation never enter the failed set.
func Record(state *store.ConversationState, strategy types.Strategy, comprehension types.ComprehensionLabel, now time.Time) {
	state.ComprehensionHistory = append(state.ComprehensionHistory, comprehension)
	state.LastComprehension = comprehension
	state.CurrentStrategy = strategy
	state.AttemptCount = len(state.ComprehensionHistory)
	state.UpdatedAt = now

	if comprehension == types.ComprehensionConfused && strategy.IsPedagogical() {
		addFailed(state, strategy)
	}
}

// FailedSet returns the membership view of the state's failed strategies for
// the router.
func FailedSet(state *store.ConversationState) map[types.Strategy]bool {
	set := make(map[types.Strategy]bool, len(state.FailedStrategies))
	for _, s := range state.FailedStrategies {
		set[s] = true
	}
	return set
}

// addFailed inserts strategy into the failed set, preserving insertion order
// and ignoring duplicates.
func addFailed(state *store.ConversationState, strategy types.Strategy) {
	for _, s := range state.FailedStrategies {
		if s == strategy {
			return
		}
	}
	state.FailedStrategies = append(state.FailedStrategies, strategy)
}
