package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fyrsmithlabs/docsearch/internal/config"
)

type azureRequest struct {
	Input string `json:"input"`
}

type azureResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// azureProvider calls an Azure OpenAI embeddings deployment. The model
// name is the deployment name.
type azureProvider struct {
	endpoint string
	apiKey   config.Secret
	client   *http.Client
	model    string
}

func newAzureProvider(cfg ProviderConfig) *azureProvider {
	q := url.Values{"api-version": {cfg.APIVersion}}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/embeddings?%s",
		cfg.BaseURL, url.PathEscape(cfg.Model), q.Encode())

	return &azureProvider{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   cfg.HTTPClient,
		model:    cfg.Model,
	}
}

func (p *azureProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	header := http.Header{"Api-Key": {p.apiKey.Value()}}

	var resp azureResponse
	if err := postJSON(ctx, p.client, p.Name(), p.endpoint, header, azureRequest{Input: text}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, malformed(p.Name(), "response has no data")
	}
	return resp.Data[0].Embedding, nil
}

func (p *azureProvider) Name() string  { return config.ProviderAzure }
func (p *azureProvider) Model() string { return p.model }
func (p *azureProvider) Close() error  { return nil }
