// Package ocr defines the text-extraction interface used when no
// vision-capable model provider is available for an image-borne instruction.
package ocr

import (
	"context"
	"errors"
)

// ErrNoText is returned when extraction succeeds mechanically but recovers no
// usable text from the image.
var ErrNoText = errors.New("ocr: no text recovered")

// Variant selects an extraction configuration. Worksheet photos defeat a
// single layout assumption, so the pipeline tries each variant in turn.
type Variant string

const (
	// VariantDocument assumes a uniform block of text (printed worksheets).
	VariantDocument Variant = "document"

	// VariantSparse assumes scattered text fragments (handwriting, diagrams
	// with labels).
	VariantSparse Variant = "sparse"
)

// DefaultVariants is the standard attempt order.
var DefaultVariants = []Variant{VariantDocument, VariantSparse}

// Extractor extracts instruction text from an image.
//
// Implementations must honour ctx cancellation; the ingest pipeline applies
// its own per-attempt deadline and variant policy on top.
type Extractor interface {
	// ExtractText returns the text read from image using the given extraction
	// variant. It returns [ErrNoText] when the image yields nothing usable
	// under that variant.
	ExtractText(ctx context.Context, image []byte, variant Variant) (string, error)
}
