// Package mock provides a configurable in-memory implementation of
// [model.Provider] and [model.VisionProvider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/types"
)

// Compile-time interface assertions.
var (
	_ model.Provider       = (*Provider)(nil)
	_ model.VisionProvider = (*Provider)(nil)
)

// GenerateCall records a single GenerateText invocation.
type GenerateCall struct {
	Prompt string
	Opts   model.Options
}

// ImageCall records a ProcessImage or ProcessImages invocation.
type ImageCall struct {
	Images [][]byte
	Prompt string
	Opts   model.Options
}

// Provider is a mock model provider. Configure the exported fields before
// use; recorded calls can be inspected after the fact. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Name defaults to "mock" when empty.
	Name string

	// Kind defaults to text_remote when empty.
	Kind types.ProviderKind

	// Model is reported via Info.
	Model string

	// Vision enables the vision capability flag.
	Vision bool

	// GenerateResponse is returned by GenerateText when GenerateErr is nil.
	GenerateResponse string

	// GenerateErr, when set, is returned by GenerateText.
	GenerateErr error

	// ImageResponse is returned by ProcessImage/ProcessImages when ImageErr is nil.
	ImageResponse string

	// ImageErr, when set, is returned by ProcessImage/ProcessImages.
	ImageErr error

	// GenerateCalls holds every recorded GenerateText call.
	GenerateCalls []GenerateCall

	// ImageCalls holds every recorded ProcessImage(s) call.
	ImageCalls []ImageCall
}

// GenerateText implements [model.Provider].
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts model.Options) (string, model.Usage, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Prompt: prompt, Opts: opts})
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", model.Usage{}, model.NewError(p.name(), model.KindTimeout, err)
	}
	if p.GenerateErr != nil {
		return "", model.Usage{}, p.GenerateErr
	}
	est := model.EstimateTokens(prompt)
	return p.GenerateResponse, model.Usage{
		PromptTokens:     est,
		CompletionTokens: model.EstimateTokens(p.GenerateResponse),
		TotalTokens:      est + model.EstimateTokens(p.GenerateResponse),
	}, nil
}

// ProcessImage implements [model.VisionProvider].
func (p *Provider) ProcessImage(ctx context.Context, image []byte, prompt string, opts model.Options) (string, error) {
	return p.ProcessImages(ctx, [][]byte{image}, prompt, opts)
}

// ProcessImages implements [model.VisionProvider].
func (p *Provider) ProcessImages(ctx context.Context, images [][]byte, prompt string, opts model.Options) (string, error) {
	p.mu.Lock()
	p.ImageCalls = append(p.ImageCalls, ImageCall{Images: images, Prompt: prompt, Opts: opts})
	p.mu.Unlock()

	if p.ImageErr != nil {
		return "", p.ImageErr
	}
	return p.ImageResponse, nil
}

// Info implements [model.Provider].
func (p *Provider) Info() model.Info {
	kind := p.Kind
	if kind == "" {
		kind = types.KindTextRemote
	}
	return model.Info{
		Name:           p.name(),
		Kind:           kind,
		Model:          p.Model,
		SupportsVision: p.Vision,
	}
}

// EstimateTokens implements [model.Provider].
func (p *Provider) EstimateTokens(text string) int {
	return model.EstimateTokens(text)
}

func (p *Provider) name() string {
	if p.Name == "" {
		return "mock"
	}
	return p.Name
}
