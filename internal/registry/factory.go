package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/provider/model/anyllm"
	"github.com/lernobot/lernobot/pkg/provider/model/gemini"
	"github.com/lernobot/lernobot/pkg/provider/model/openai"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// defaultModels are the models used when neither the record nor bootstrap
// config names one.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"cohere":    "command-r",
}

// kindFor maps a provider key to its adapter family kind.
func kindFor(name string) types.ProviderKind {
	switch {
	case strings.HasPrefix(name, "google-"):
		return types.KindMultimodalRemote
	case strings.HasPrefix(name, "ollama-"):
		return types.KindLocal
	default:
		return types.KindTextRemote
	}
}

// NewDefaultFactory returns the production [Factory] wiring each registry
// record to its SDK adapter. ollamaBaseURL points local records at a
// non-standard Ollama server; empty uses the adapter default.
func NewDefaultFactory(ollamaBaseURL string) Factory {
	return func(ctx context.Context, rec store.ProviderRecord, credential string) (model.Provider, error) {
		modelName := rec.Model
		if modelName == "" {
			modelName = defaultModels[rec.Name]
		}

		switch {
		case rec.Name == "openai":
			return openai.New(credential, modelName)

		case rec.Name == "cohere":
			return openai.NewCohere(credential, modelName)

		case rec.Name == "anthropic":
			return anyllm.NewAnthropic(credential, modelName)

		case strings.HasPrefix(rec.Name, "google-"):
			return gemini.New(ctx, credential, strings.TrimPrefix(rec.Name, "google-"))

		case strings.HasPrefix(rec.Name, "ollama-"):
			baseURL := ollamaBaseURL
			if u, ok := rec.Config["base_url"]; ok && u != "" {
				baseURL = u
			}
			return anyllm.NewOllama(baseURL, strings.TrimPrefix(rec.Name, "ollama-"))

		default:
			return nil, fmt.Errorf("registry: unknown provider key %q", rec.Name)
		}
	}
}

// defaultFactory is the zero-configuration production factory.
var defaultFactory = NewDefaultFactory("")
