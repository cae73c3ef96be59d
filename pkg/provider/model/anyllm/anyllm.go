// Package anyllm provides text-remote model providers backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider completion
// interface. It is used for backends that need no dedicated SDK here,
// currently Anthropic, and for text generation against local Ollama servers
// (model discovery for Ollama lives in the ollama package).
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/types"
)

// Compile-time interface assertion.
var _ model.Provider = (*Provider)(nil)

// Provider implements [model.Provider] by wrapping an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	kind    types.ProviderKind
	model   string
}

// NewAnthropic creates a Provider registered under the key "anthropic".
func NewAnthropic(apiKey, modelName string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	backend, err := anthropic.New(anyllmlib.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create backend: %w", err)
	}
	return &Provider{
		backend: backend,
		name:    "anthropic",
		kind:    types.KindTextRemote,
		model:   modelName,
	}, nil
}

// NewOllama creates a local Provider for a single discovered Ollama model.
// The registry key carries the model name so each local model is addressable
// independently.
func NewOllama(baseURL, modelName string) (*Provider, error) {
	if modelName == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	var opts []anyllmlib.Option
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}
	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: create backend: %w", err)
	}
	return &Provider{
		backend: backend,
		name:    "ollama-" + modelName,
		kind:    types.KindLocal,
		model:   modelName,
	}, nil
}

// GenerateText implements [model.Provider].
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts model.Options) (string, model.Usage, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var messages []anyllmlib.Message
	if opts.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: prompt,
	})

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if opts.Temperature != 0 {
		t := opts.Temperature
		params.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		mt := opts.MaxTokens
		params.MaxTokens = &mt
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		// any-llm-go does not expose structured status codes, so
		// classification falls back to message inspection.
		return "", model.Usage{}, model.NewError(p.name, model.Classify(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", model.Usage{}, model.NewError(p.name, model.KindUpstream,
			errors.New("empty choices in response"))
	}

	var usage model.Usage
	if resp.Usage != nil {
		usage = model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	return text, usage, nil
}

// Info implements [model.Provider].
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:           p.name,
		Kind:           p.kind,
		Model:          p.model,
		SupportsVision: false,
	}
}

// EstimateTokens implements [model.Provider].
func (p *Provider) EstimateTokens(text string) int {
	return model.EstimateTokens(text)
}
