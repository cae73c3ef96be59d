// Package types defines the wire-stable domain vocabulary of the Lernobot
// mediation engine: pedagogical strategies, comprehension labels, session
// modes, assistance types, and the per-turn result shapes.
//
// All enumeration values are stable identifiers emitted verbatim on the wire.
// They must never be renamed.
package types

// Strategy identifies a pedagogical mediation strategy or a synthetic turn
// outcome. The seven real strategies are routing targets; the synthetic
// values appear only in [TurnResult.StrategyUsed].
type Strategy string

const (
	StrategyEmotionalSupport    Strategy = "emotional_support"
	StrategyHighlightKeywords   Strategy = "highlight_keywords"
	StrategyGuidedReading       Strategy = "guided_reading"
	StrategyProvideExample      Strategy = "provide_example"
	StrategyBreakdownSteps      Strategy = "breakdown_steps"
	StrategyDetailedExplanation Strategy = "detailed_explanation"
	StrategyTeacherEscalation   Strategy = "teacher_escalation"

	// Synthetic outcomes. Never valid routing targets and never recorded
	// in a session's failed-strategy set.
	OutcomeInitialGreeting Strategy = "initial_greeting"
	OutcomeOpenQuestion    Strategy = "open_question"
	OutcomeErrorFallback   Strategy = "error_fallback"
	OutcomeServiceFallback Strategy = "service_fallback"
)

// EscalationOrder is the fixed strategy hierarchy walked by the router.
// The order is total and part of the routing contract.
var EscalationOrder = []Strategy{
	StrategyEmotionalSupport,
	StrategyHighlightKeywords,
	StrategyGuidedReading,
	StrategyProvideExample,
	StrategyBreakdownSteps,
	StrategyDetailedExplanation,
}

// IsPedagogical reports whether s is one of the six real strategies the
// router may attempt (teacher_escalation and synthetic outcomes excluded).
func (s Strategy) IsPedagogical() bool {
	for _, h := range EscalationOrder {
		if s == h {
			return true
		}
	}
	return false
}

// IsSynthetic reports whether s is a turn-outcome label rather than a strategy.
func (s Strategy) IsSynthetic() bool {
	switch s {
	case OutcomeInitialGreeting, OutcomeOpenQuestion, OutcomeErrorFallback, OutcomeServiceFallback:
		return true
	}
	return false
}

// ComprehensionLabel classifies a learner utterance.
type ComprehensionLabel string

const (
	ComprehensionInitial    ComprehensionLabel = "initial"
	ComprehensionEmotional  ComprehensionLabel = "emotional"
	ComprehensionConfused   ComprehensionLabel = "confused"
	ComprehensionUnderstood ComprehensionLabel = "understood"
	ComprehensionPartial    ComprehensionLabel = "partial"
)

// Mode selects the session discipline. Test mode caps distinct failed
// strategies at three before the router escalates to the teacher.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeTest     Mode = "test"
)

// IsValid reports whether m is a recognised session mode.
func (m Mode) IsValid() bool {
	return m == ModePractice || m == ModeTest
}

// AssistanceType is an optional per-turn explicit request that overrides
// routing, except that emotional comprehension still wins.
type AssistanceType string

const (
	AssistanceExplain   AssistanceType = "explain"
	AssistanceBreakdown AssistanceType = "breakdown"
	AssistanceExample   AssistanceType = "example"
)

// Strategy maps the assistance type to its strategy. Returns ("", false) for
// the empty (absent) assistance type or an unknown value.
func (a AssistanceType) Strategy() (Strategy, bool) {
	switch a {
	case AssistanceExplain:
		return StrategyDetailedExplanation, true
	case AssistanceBreakdown:
		return StrategyBreakdownSteps, true
	case AssistanceExample:
		return StrategyProvideExample, true
	}
	return "", false
}

// ProviderKind tags a model provider adapter family.
type ProviderKind string

const (
	KindLocal            ProviderKind = "local"
	KindTextRemote       ProviderKind = "text_remote"
	KindMultimodalRemote ProviderKind = "multimodal_remote"
)

// TurnResult is the outcome of a single mediation turn.
type TurnResult struct {
	// ResponseText is the learner-facing Hebrew response.
	ResponseText string

	// StrategyUsed is the strategy that produced the response, or a
	// synthetic outcome when the turn short-circuited or degraded.
	StrategyUsed Strategy

	// ComprehensionLevel is the classifier's label for the utterance.
	ComprehensionLevel ComprehensionLabel

	// AttemptCount is the session's attempt counter after the turn.
	AttemptCount int
}

// IngestMethod records how an image turn obtained its instruction text.
type IngestMethod string

const (
	MethodVision IngestMethod = "vision"
	MethodOCR    IngestMethod = "ocr"
)

// ImageTurnResult extends TurnResult with image-turn bookkeeping.
type ImageTurnResult struct {
	TurnResult

	// ImageRefs are opaque identifiers assigned to the submitted images.
	ImageRefs []string

	// Method is how the instruction was read from the image.
	Method IngestMethod
}
