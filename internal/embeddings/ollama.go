package embeddings

import (
	"context"
	"net/http"

	"github.com/fyrsmithlabs/docsearch/internal/config"
)

type ollamaRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaProvider calls Ollama's /api/embed endpoint.
type ollamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllamaProvider(cfg ProviderConfig) *ollamaProvider {
	return &ollamaProvider{baseURL: cfg.BaseURL, model: cfg.Model, client: cfg.HTTPClient}
}

func (p *ollamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	var resp ollamaResponse
	err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/api/embed", nil,
		ollamaRequest{Model: p.model, Input: text}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, malformed(p.Name(), "response has no embeddings")
	}
	return resp.Embeddings[0], nil
}

func (p *ollamaProvider) Name() string  { return config.ProviderOllama }
func (p *ollamaProvider) Model() string { return p.model }
func (p *ollamaProvider) Close() error  { return nil }
