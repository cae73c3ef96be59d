// Package mock provides a configurable in-memory [ocr.Extractor] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lernobot/lernobot/pkg/provider/ocr"
)

// Compile-time interface assertion.
var _ ocr.Extractor = (*Extractor)(nil)

// Extractor is a mock OCR service. Results are consumed in order; once the
// configured results run out the last one repeats. Safe for concurrent use.
type Extractor struct {
	mu sync.Mutex

	// Texts are returned in order per call when the matching Errs entry is nil.
	Texts []string

	// Errs pairs with Texts; a non-nil entry is returned instead of the text.
	Errs []error

	// Calls counts ExtractText invocations.
	Calls int

	// Variants records the variant of each call, in order.
	Variants []ocr.Variant
}

// ExtractText implements [ocr.Extractor].
func (e *Extractor) ExtractText(ctx context.Context, image []byte, variant ocr.Variant) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.Calls
	e.Calls++
	e.Variants = append(e.Variants, variant)
	if n := len(e.Texts); n > 0 && i >= n {
		i = n - 1
	}

	if i < len(e.Errs) && e.Errs[i] != nil {
		return "", e.Errs[i]
	}
	if i < len(e.Texts) {
		return e.Texts[i], nil
	}
	return "", ocr.ErrNoText
}
