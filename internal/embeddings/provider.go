// Package embeddings turns text into vectors through an external backend.
//
// Providers speak to Ollama, Azure OpenAI or any OpenAI-compatible
// endpoint. Every failure is reported as *Error so callers can tell a
// flaky network from a misconfigured deployment.
package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docsearch/internal/config"
)

// Embedder computes the embedding of one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder bound to a concrete backend and model.
type Provider interface {
	Embedder
	// Name identifies the backend, e.g. "ollama".
	Name() string
	// Model is the model or deployment vectors come from.
	Model() string
	Close() error
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider   string
	BaseURL    string
	Model      string
	APIKey     config.Secret
	APIVersion string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// ProviderConfigFrom converts the loaded configuration section.
func ProviderConfigFrom(c config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:   c.Provider,
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		APIKey:     c.APIKey,
		APIVersion: c.APIVersion,
	}
}

// Validate checks required fields for the selected provider.
func (c ProviderConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Provider == config.ProviderAzure && (!c.APIKey.IsSet() || c.APIVersion == "") {
		return fmt.Errorf("%w: azure requires api key and api version", ErrInvalidConfig)
	}
	return nil
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	switch cfg.Provider {
	case config.ProviderOllama, "":
		return newOllamaProvider(cfg), nil
	case config.ProviderAzure:
		return newAzureProvider(cfg), nil
	case config.ProviderOpenAI:
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
