// Package vision turns learner-submitted instruction images into text.
//
// The preferred path is a vision-capable model provider reading all images in
// one joint request. When no such provider is live, or the vision call fails,
// the pipeline degrades to the OCR sidecar, attempting each image under each
// extraction variant with a short per-attempt deadline. Only when both paths
// produce nothing does ingestion fail, and the caller responds with the
// canned unreadable-image text.
package vision

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lernobot/lernobot/internal/observe"
	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/provider/ocr"
	"github.com/lernobot/lernobot/pkg/types"
)

// ErrUnreadable is returned when neither vision nor OCR could read any text
// from the submitted images.
var ErrUnreadable = errors.New("vision: no text could be read from images")

const (
	defaultVisionTimeout = 180 * time.Second
	defaultOCRTimeout    = 30 * time.Second
)

// Result is a successful ingestion outcome.
type Result struct {
	// Text is the instruction text read from the images.
	Text string

	// Method records which path produced the text.
	Method types.IngestMethod
}

// Resolver is the slice of the provider registry the pipeline needs.
type Resolver interface {
	ResolveVision(preferred string) (model.VisionProvider, error)
	Do(name string, fn func() error) error
}

// Pipeline reads instruction text out of images. Safe for concurrent use.
type Pipeline struct {
	resolver  Resolver
	extractor ocr.Extractor // nil disables the OCR fallback
	metrics   *observe.Metrics

	visionTimeout time.Duration
	ocrTimeout    time.Duration
	ocrVariants   []ocr.Variant
}

// New creates a Pipeline. extractor may be nil when no OCR sidecar is
// configured; the vision path is then the only one.
func New(resolver Resolver, extractor ocr.Extractor, metrics *observe.Metrics) *Pipeline {
	return &Pipeline{
		resolver:      resolver,
		extractor:     extractor,
		metrics:       metrics,
		visionTimeout: defaultVisionTimeout,
		ocrTimeout:    defaultOCRTimeout,
		ocrVariants:   ocr.DefaultVariants,
	}
}

// Ingest reads the instruction text from images. prompt is the extraction
// prompt sent with the vision request; preferred names the provider to try
// first. Returns [ErrUnreadable] when every path is exhausted.
func (p *Pipeline) Ingest(ctx context.Context, images [][]byte, prompt, preferred string) (Result, error) {
	if len(images) == 0 {
		return Result{}, ErrUnreadable
	}

	if text, ok := p.tryVision(ctx, images, prompt, preferred); ok {
		return Result{Text: text, Method: types.MethodVision}, nil
	}

	if p.metrics != nil {
		p.metrics.OCRFallbacks.Add(ctx, 1)
	}
	if text, ok := p.tryOCR(ctx, images); ok {
		return Result{Text: text, Method: types.MethodOCR}, nil
	}
	return Result{}, ErrUnreadable
}

// tryVision runs one joint vision request against the best live provider.
func (p *Pipeline) tryVision(ctx context.Context, images [][]byte, prompt, preferred string) (string, bool) {
	prov, err := p.resolver.ResolveVision(preferred)
	if err != nil {
		slog.Debug("no vision-capable provider live, degrading to ocr")
		return "", false
	}

	name := prov.Info().Name
	var text string
	err = p.resolver.Do(name, func() error {
		var innerErr error
		text, innerErr = prov.ProcessImages(ctx, images, prompt, model.Options{
			Timeout: p.visionTimeout,
		})
		return innerErr
	})
	if err != nil {
		slog.Warn("vision extraction failed, degrading to ocr", "provider", name, "err", err)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("vision extraction returned empty text, degrading to ocr", "provider", name)
		return "", false
	}
	return text, true
}

// tryOCR extracts text from each image, attempting every extraction variant,
// and joins the non-empty results.
func (p *Pipeline) tryOCR(ctx context.Context, images [][]byte) (string, bool) {
	if p.extractor == nil {
		return "", false
	}

	var texts []string
	for i, img := range images {
		text, err := p.extractOne(ctx, img)
		if err != nil {
			slog.Warn("ocr extraction failed for image", "index", i, "err", err)
			continue
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return "", false
	}
	return strings.Join(texts, "\n"), true
}

// extractOne runs OCR for one image, one attempt per extraction variant. An
// [ocr.ErrNoText] under one variant still tries the next: a layout the
// document configuration misses may be readable as sparse text.
func (p *Pipeline) extractOne(ctx context.Context, img []byte) (string, error) {
	var lastErr error
	for _, variant := range p.ocrVariants {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, p.ocrTimeout)
		text, err := p.extractor.ExtractText(attemptCtx, img, variant)
		cancel()

		if p.metrics != nil {
			p.metrics.OCRDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.Bool("ok", err == nil),
					attribute.String("variant", string(variant)),
				))
		}

		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err
	}
	return "", lastErr
}
