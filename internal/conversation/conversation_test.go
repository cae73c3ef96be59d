package conversation

import (
	"testing"
	"time"

	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

func TestBeginTurn_ResetOnInstructionChange(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	state := store.NewConversationState(1, now)
	state.CurrentInstruction = "פתור 25+37"
	state.FailedStrategies = []types.Strategy{types.StrategyEmotionalSupport}
	state.ComprehensionHistory = []types.ComprehensionLabel{types.ComprehensionConfused}
	state.LastComprehension = types.ComprehensionConfused
	state.CurrentStrategy = types.StrategyEmotionalSupport
	state.AttemptCount = 1

	reset := BeginTurn(&state, "קרא את הסיפור", now)
	if !reset {
		t.Fatal("BeginTurn reported no reset for a changed instruction")
	}
	if len(state.FailedStrategies) != 0 {
		t.Errorf("FailedStrategies = %v, want empty", state.FailedStrategies)
	}
	if len(state.ComprehensionHistory) != 0 {
		t.Errorf("ComprehensionHistory = %v, want empty", state.ComprehensionHistory)
	}
	if state.LastComprehension != types.ComprehensionInitial {
		t.Errorf("LastComprehension = %q, want initial", state.LastComprehension)
	}
	if state.CurrentStrategy != "" {
		t.Errorf("CurrentStrategy = %q, want empty", state.CurrentStrategy)
	}
	if state.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d, want 0", state.AttemptCount)
	}
	if state.CurrentInstruction != "קרא את הסיפור" {
		t.Errorf("CurrentInstruction = %q", state.CurrentInstruction)
	}
}

func TestBeginTurn_SameInstructionIsNoop(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	state := store.NewConversationState(1, now)
	state.CurrentInstruction = "פתור 25+37"
	state.FailedStrategies = []types.Strategy{types.StrategyGuidedReading}
	state.AttemptCount = 3

	if reset := BeginTurn(&state, "פתור 25+37", now); reset {
		t.Fatal("BeginTurn reported a reset for the same instruction")
	}
	if len(state.FailedStrategies) != 1 || state.AttemptCount != 3 {
		t.Errorf("state mutated on no-op: %+v", state)
	}
}

func TestRecord_Invariants(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	state := store.NewConversationState(7, now)
	BeginTurn(&state, "חשבו 3×4", now)

	// Confused turn on a real strategy joins the failed set.
	Record(&state, types.StrategyEmotionalSupport, types.ComprehensionConfused, now)
	if state.AttemptCount != 1 {
		t.Fatalf("AttemptCount = %d, want 1", state.AttemptCount)
	}
	if len(state.FailedStrategies) != 1 || state.FailedStrategies[0] != types.StrategyEmotionalSupport {
		t.Fatalf("FailedStrategies = %v", state.FailedStrategies)
	}

	// Understood turn never joins the failed set.
	Record(&state, types.StrategyHighlightKeywords, types.ComprehensionUnderstood, now)
	if len(state.FailedStrategies) != 1 {
		t.Errorf("FailedStrategies grew on understood turn: %v", state.FailedStrategies)
	}

	// Attempt count always tracks the history length.
	if state.AttemptCount != len(state.ComprehensionHistory) {
		t.Errorf("AttemptCount = %d, history length = %d",
			state.AttemptCount, len(state.ComprehensionHistory))
	}
	if state.LastComprehension != types.ComprehensionUnderstood {
		t.Errorf("LastComprehension = %q, want understood", state.LastComprehension)
	}
	if state.CurrentStrategy != types.StrategyHighlightKeywords {
		t.Errorf("CurrentStrategy = %q", state.CurrentStrategy)
	}
}

func TestRecord_EscalationAndSyntheticNeverFail(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	state := store.NewConversationState(8, now)

	Record(&state, types.StrategyTeacherEscalation, types.ComprehensionConfused, now)
	Record(&state, types.OutcomeServiceFallback, types.ComprehensionConfused, now)

	if len(state.FailedStrategies) != 0 {
		t.Errorf("FailedStrategies = %v, want empty", state.FailedStrategies)
	}
	if state.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", state.AttemptCount)
	}
}

func TestRecord_FailedSetDeduplicates(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	state := store.NewConversationState(9, now)

	Record(&state, types.StrategyGuidedReading, types.ComprehensionConfused, now)
	Record(&state, types.StrategyGuidedReading, types.ComprehensionConfused, now)

	if len(state.FailedStrategies) != 1 {
		t.Errorf("FailedStrategies = %v, want one entry", state.FailedStrategies)
	}
	if state.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", state.AttemptCount)
	}
}

func TestFailedSet(t *testing.T) {
	t.Parallel()

	state := store.ConversationState{
		FailedStrategies: []types.Strategy{
			types.StrategyEmotionalSupport,
			types.StrategyBreakdownSteps,
		},
	}
	set := FailedSet(&state)
	if len(set) != 2 || !set[types.StrategyEmotionalSupport] || !set[types.StrategyBreakdownSteps] {
		t.Errorf("FailedSet = %v", set)
	}
}
