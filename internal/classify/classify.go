// Package classify maps free-text learner utterances to comprehension labels.
//
// Classification is rule-based: a strictly ordered walk over fixed phrase
// sets. The rule order is part of the contract — emotional phrases win over
// confusion phrases, which win over understanding phrases — and the function
// is pure, total, and deterministic.
package classify

import (
	"strings"

	"github.com/lernobot/lernobot/pkg/types"
)

// Classify labels utterance. The rules apply in order, first match wins:
//
//  1. Normalize (trim, lowercase Latin, collapse whitespace).
//  2. Empty or a pure greeting → initial.
//  3. Any emotional phrase as substring → emotional.
//  4. Any confusion phrase → confused.
//  5. Any understanding phrase → understood.
//  6. More than one token → confused.
//  7. Otherwise → partial.
//
// Rule 6 deliberately treats any multi-word utterance that misses every
// lexicon as a request for help rather than an acknowledgement; routing and
// escalation depend on this.
func Classify(utterance string) types.ComprehensionLabel {
	norm := Normalize(utterance)

	if norm == "" || isGreeting(norm) {
		return types.ComprehensionInitial
	}

	if containsAny(norm, emotionalPhrases) {
		return types.ComprehensionEmotional
	}
	if containsAny(norm, confusionPhrases) {
		return types.ComprehensionConfused
	}
	if containsAny(norm, understandingPhrases) {
		return types.ComprehensionUnderstood
	}

	if len(strings.Fields(norm)) > 1 {
		return types.ComprehensionConfused
	}
	return types.ComprehensionPartial
}

// Normalize trims, lowercases Latin characters (Hebrew is caseless and
// passes through unchanged), and collapses internal whitespace runs to a
// single space.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// IsGreetingOrEmpty reports whether the normalized form of utterance is empty
// or a pure greeting. The engine uses this for the greeting shortcut.
func IsGreetingOrEmpty(utterance string) bool {
	norm := Normalize(utterance)
	return norm == "" || isGreeting(norm)
}

func isGreeting(norm string) bool {
	for _, g := range greetings {
		if norm == g {
			return true
		}
	}
	return false
}

func containsAny(norm string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}
