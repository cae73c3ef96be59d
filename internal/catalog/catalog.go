// Package catalog holds the localized prompt templates and fixed learner-facing
// texts of the mediation engine, keyed by (strategy, mode).
//
// The catalog is Hebrew-primary. Rendering is pure and deterministic —
// [Catalog.PickEncouragement] is the only operation that draws randomness,
// and only when explicitly called. A Catalog is immutable after [New] and
// safe for concurrent use.
package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"text/template"

	"github.com/lernobot/lernobot/pkg/types"
)

// ErrTemplate is wrapped by all rendering failures, including unknown
// variables and missing (strategy, mode) pairs.
var ErrTemplate = errors.New("catalog: template error")

// allowedVars are the only variable names Render accepts.
var allowedVars = map[string]bool{
	"instruction": true,
	"concept":     true,
}

// Vars carries the bounded variable map bound into a template.
type Vars map[string]string

// Catalog renders prompt text for each (strategy, mode) pair.
type Catalog struct {
	parsed map[types.Strategy]map[types.Mode]*template.Template

	mu  sync.Mutex
	rng *rand.Rand
}

// New parses all templates and returns an immutable Catalog.
func New() (*Catalog, error) {
	parsed := make(map[types.Strategy]map[types.Mode]*template.Template, len(templates))
	for strategy, byMode := range templates {
		parsed[strategy] = make(map[types.Mode]*template.Template, len(byMode))
		for mode, text := range byMode {
			tmpl, err := template.New(string(strategy) + "/" + string(mode)).
				Option("missingkey=error").
				Parse(text)
			if err != nil {
				return nil, fmt.Errorf("catalog: parse template %s/%s: %w", strategy, mode, err)
			}
			parsed[strategy][mode] = tmpl
		}
	}
	return &Catalog{
		parsed: parsed,
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Render produces the prompt for (strategy, mode) with vars bound. Unknown
// variable names and missing required variables fail with an error wrapping
// [ErrTemplate]. When systemPrefix is non-empty it is prepended verbatim
// followed by two newlines.
func (c *Catalog) Render(strategy types.Strategy, mode types.Mode, vars Vars, systemPrefix string) (string, error) {
	for name := range vars {
		if !allowedVars[name] {
			return "", fmt.Errorf("%w: unknown variable %q", ErrTemplate, name)
		}
	}

	byMode, ok := c.parsed[strategy]
	if !ok {
		return "", fmt.Errorf("%w: no templates for strategy %q", ErrTemplate, strategy)
	}
	tmpl, ok := byMode[mode]
	if !ok {
		return "", fmt.Errorf("%w: no %q template for strategy %q", ErrTemplate, mode, strategy)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]string(vars)); err != nil {
		return "", fmt.Errorf("%w: render %s/%s: %v", ErrTemplate, strategy, mode, err)
	}

	out := sb.String()
	if systemPrefix != "" {
		out = systemPrefix + "\n\n" + out
	}
	return out, nil
}

// FallbackFor returns the short fixed Hebrew response for strategy, used when
// generation fails. Unknown strategies fall back to the escalation text so
// the learner always receives something.
func (c *Catalog) FallbackFor(strategy types.Strategy) string {
	if text, ok := fallbackTexts[strategy]; ok {
		return text
	}
	return escalationText
}

// Greeting returns the fixed initial greeting.
func (c *Catalog) Greeting() string { return greetingText }

// Escalation returns the fixed terminal call-the-teacher message.
func (c *Catalog) Escalation() string { return escalationText }

// OCRFailure returns the fixed could-not-read-image message.
func (c *Catalog) OCRFailure() string { return ocrFailureText }

// VisionPrompt returns the instruction-agnostic Hebrew prompt for reading a
// task image with a multimodal model.
func (c *Catalog) VisionPrompt() string { return visionPromptText }

// EmotionalResponse looks up the direct-response table for utterance and
// returns the verbatim response for the first matching phrase. The table
// bypasses model generation for emotional support.
func (c *Catalog) EmotionalResponse(utterance string) (string, bool) {
	for _, e := range emotionalResponses {
		if strings.Contains(utterance, e.phrase) {
			return e.response, true
		}
	}
	return "", false
}

// ConceptFor derives the concept template variable from instruction using
// the concept-keyword map. First match wins.
func (c *Catalog) ConceptFor(instruction string) string {
	for _, kc := range conceptKeywords {
		if strings.Contains(instruction, kc.keyword) {
			return kc.concept
		}
	}
	return defaultConcept
}

// PickEncouragement returns a random encouragement line.
func (c *Catalog) PickEncouragement() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return encouragements[c.rng.Intn(len(encouragements))]
}
