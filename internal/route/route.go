// Package route picks the next pedagogical strategy for a turn.
//
// The decision procedure is a fixed rule list, first match wins. It is pure
// and total: every input combination yields a strategy, possibly the terminal
// teacher_escalation.
package route

import (
	"github.com/lernobot/lernobot/pkg/types"
)

// testModeFailureCeiling is the number of distinct failed strategies after
// which a test-mode session escalates to the teacher.
const testModeFailureCeiling = 3

// Next returns the strategy for a turn.
//
// Rules, in order:
//
//  1. Emotional comprehension → emotional_support. This precedes the
//     assistance override: emotional first-aid is never suppressed.
//  2. A present assistance type maps through its fixed table and returns.
//  3. In test mode, three or more distinct failed strategies → teacher_escalation.
//  4. The first strategy in the escalation order not yet in failed wins.
//  5. All strategies failed → teacher_escalation.
//
// failed holds membership of the session's failed-strategy set; assistance is
// the empty string when absent.
func Next(comprehension types.ComprehensionLabel, failed map[types.Strategy]bool, mode types.Mode, assistance types.AssistanceType) types.Strategy {
	if comprehension == types.ComprehensionEmotional {
		return types.StrategyEmotionalSupport
	}

	if s, ok := assistance.Strategy(); ok {
		return s
	}

	if mode == types.ModeTest && len(failed) >= testModeFailureCeiling {
		return types.StrategyTeacherEscalation
	}

	for _, s := range types.EscalationOrder {
		if !failed[s] {
			return s
		}
	}
	return types.StrategyTeacherEscalation
}
