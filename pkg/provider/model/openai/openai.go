// Package openai provides a text-remote model provider backed by the OpenAI
// chat completions API. The same adapter serves Cohere through its
// OpenAI-compatible endpoint via [NewCohere].
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/types"
)

// cohereCompatBaseURL is Cohere's OpenAI-compatible chat completions endpoint.
const cohereCompatBaseURL = "https://api.cohere.ai/compatibility/v1"

// Compile-time interface assertion.
var _ model.Provider = (*Provider)(nil)

// Provider implements [model.Provider] using the OpenAI SDK.
type Provider struct {
	client oai.Client
	name   string
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API base URL. This is how the adapter is
// pointed at OpenAI-compatible endpoints.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs an OpenAI-backed Provider registered under the key "openai".
func New(apiKey, modelName string, opts ...Option) (*Provider, error) {
	return newNamed("openai", apiKey, modelName, opts...)
}

// NewCohere constructs a Provider registered under the key "cohere" that
// talks to Cohere's OpenAI compatibility endpoint.
func NewCohere(apiKey, modelName string, opts ...Option) (*Provider, error) {
	opts = append([]Option{WithBaseURL(cohereCompatBaseURL)}, opts...)
	return newNamed("cohere", apiKey, modelName, opts...)
}

func newNamed(name, apiKey, modelName string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: apiKey must not be empty", name)
	}
	if modelName == "" {
		return nil, fmt.Errorf("%s: model must not be empty", name)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		name:   name,
		model:  modelName,
	}, nil
}

// GenerateText implements [model.Provider].
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts model.Options) (string, model.Usage, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var messages []oai.ChatCompletionMessageParamUnion
	if opts.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, oai.UserMessage(prompt))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if opts.Temperature != 0 {
		params.Temperature = param.NewOpt(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(opts.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", model.Usage{}, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", model.Usage{}, model.NewError(p.name, model.KindUpstream,
			errors.New("empty choices in response"))
	}

	usage := model.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// Info implements [model.Provider].
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:           p.name,
		Kind:           types.KindTextRemote,
		Model:          p.model,
		SupportsVision: false,
	}
}

// EstimateTokens implements [model.Provider].
func (p *Provider) EstimateTokens(text string) int {
	return model.EstimateTokens(text)
}

// classify converts an SDK error into the uniform adapter error.
func (p *Provider) classify(err error) *model.Error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return model.NewError(p.name, model.ClassifyStatus(apiErr.StatusCode), err)
	}
	return model.NewError(p.name, model.Classify(err), err)
}
