// Package gemini provides multimodal-remote model providers backed by the
// Google Gemini API via google.golang.org/genai.
//
// Gemini is a provider family: one credential drives several per-model
// registry keys of the form "google-<model>", and every member supports
// vision. [FamilyModels] lists the members created by the registry when a
// Google credential is added.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/types"
)

// FamilyModels are the Gemini models fanned out per credential. Each becomes
// its own provider key "google-<model>".
var FamilyModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// KeyFor returns the registry key for a Gemini family model.
func KeyFor(modelName string) string {
	return "google-" + modelName
}

// Compile-time interface assertions.
var (
	_ model.Provider       = (*Provider)(nil)
	_ model.VisionProvider = (*Provider)(nil)
)

// Provider implements [model.VisionProvider] for one Gemini family model.
type Provider struct {
	client *genai.Client
	model  string
}

// New constructs a Provider for the given Gemini model.
func New(ctx context.Context, apiKey, modelName string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if modelName == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: modelName}, nil
}

// GenerateText implements [model.Provider].
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts model.Options) (string, model.Usage, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	text, usage, err := p.generate(ctx, contents, opts)
	if err != nil {
		return "", model.Usage{}, err
	}
	return text, usage, nil
}

// ProcessImage implements [model.VisionProvider].
func (p *Provider) ProcessImage(ctx context.Context, image []byte, prompt string, opts model.Options) (string, error) {
	return p.ProcessImages(ctx, [][]byte{image}, prompt, opts)
}

// ProcessImages implements [model.VisionProvider]. All images are sent in a
// single joint request followed by the prompt text.
func (p *Provider) ProcessImages(ctx context.Context, images [][]byte, prompt string, opts model.Options) (string, error) {
	if len(images) == 0 {
		return "", model.NewError(p.key(), model.KindUpstream, errors.New("no images supplied"))
	}

	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img, detectMIME(img)))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	text, _, err := p.generate(ctx, contents, opts)
	return text, err
}

// generate runs one GenerateContent call with the shared option mapping.
func (p *Provider) generate(ctx context.Context, contents []*genai.Content, opts model.Options) (string, model.Usage, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", model.Usage{}, p.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return "", model.Usage{}, model.NewError(p.key(), model.KindUpstream,
			errors.New("empty response"))
	}

	var usage model.Usage
	if resp.UsageMetadata != nil {
		usage = model.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return text, usage, nil
}

// Info implements [model.Provider].
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:           p.key(),
		Kind:           types.KindMultimodalRemote,
		Model:          p.model,
		SupportsVision: true,
	}
}

// EstimateTokens implements [model.Provider].
func (p *Provider) EstimateTokens(text string) int {
	return model.EstimateTokens(text)
}

func (p *Provider) key() string {
	return KeyFor(p.model)
}

// classify converts a genai error into the uniform adapter error.
func (p *Provider) classify(err error) *model.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return model.NewError(p.key(), model.ClassifyStatus(apiErr.Code), err)
	}
	return model.NewError(p.key(), model.Classify(err), err)
}

// detectMIME sniffs the image content type; learner uploads are occasionally
// mislabelled so the bytes are authoritative.
func detectMIME(b []byte) string {
	mime := http.DetectContentType(b)
	// DetectContentType falls back to application/octet-stream; Gemini
	// rejects that, so default to PNG which it tolerates for most rasters.
	if mime == "application/octet-stream" {
		return "image/png"
	}
	return mime
}
