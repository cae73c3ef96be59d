// Package model defines the Provider interface for the text and vision model
// backends the mediation engine dispatches to.
//
// A model provider wraps a remote API (e.g., OpenAI, Anthropic, the Google
// Gemini family) or a local inference server (Ollama) and exposes a uniform
// surface for single-prompt text generation and, where supported, image
// understanding. Vision capability is discovered through [Provider.Info];
// callers must type-assert to [VisionProvider] only when
// [Info.SupportsVision] reports true.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package model

import (
	"context"
	"time"

	"github.com/lernobot/lernobot/pkg/types"
)

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Options carries per-call generation parameters.
type Options struct {
	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps generated tokens. Zero means provider default.
	MaxTokens int

	// Timeout bounds the upstream call. Zero means no adapter-level bound
	// beyond the caller's context deadline.
	Timeout time.Duration

	// SystemPrompt is an optional high-priority instruction injected before
	// the user prompt.
	SystemPrompt string
}

// Info describes a provider instance. The result is constant for the lifetime
// of the instance.
type Info struct {
	// Name is the stable registry key, e.g. "openai" or "google-gemini-2.0-flash".
	Name string

	// Kind tags the adapter family.
	Kind types.ProviderKind

	// Model is the backend model identifier.
	Model string

	// SupportsVision reports whether the instance implements [VisionProvider].
	SupportsVision bool
}

// Provider is the abstraction over any text model backend.
type Provider interface {
	// GenerateText sends prompt to the model and returns the full response
	// text. Errors are classified into the four [ErrorKind] values and
	// returned as a [*Error]; adapter code must not leak SDK error types.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, Usage, error)

	// Info returns static metadata about this provider instance.
	Info() Info

	// EstimateTokens returns a coarse upper-bound token count for text.
	EstimateTokens(text string) int
}

// VisionProvider is implemented by providers whose model can read images.
type VisionProvider interface {
	Provider

	// ProcessImage sends a single image together with prompt and returns the
	// model's textual reading of it.
	ProcessImage(ctx context.Context, image []byte, prompt string, opts Options) (string, error)

	// ProcessImages sends several images jointly. Implementations that cannot
	// batch should return an Upstream error rather than silently dropping
	// images; the ingest pipeline handles single-image degradation itself.
	ProcessImages(ctx context.Context, images [][]byte, prompt string, opts Options) (string, error)
}

// EstimateTokens is the shared coarse estimator used by adapters that have no
// native tokenizer: ~4 characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
