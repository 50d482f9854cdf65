package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/docsearch/internal/config"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// openAIProvider embeds through langchaingo against any
// OpenAI-compatible endpoint.
type openAIProvider struct {
	embedder *lcembeddings.EmbedderImpl
	model    string
}

// classifyingDoer reports transport and status failures as *Error before
// langchaingo flattens them into strings.
type classifyingDoer struct {
	client *http.Client
}

func (d classifyingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Provider: config.ProviderOpenAI, Err: err}
	}
	if err := checkStatus(config.ProviderOpenAI, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func newOpenAIProvider(cfg ProviderConfig) (*openAIProvider, error) {
	token := cfg.APIKey.Value()
	if token == "" {
		// langchaingo insists on a token; local compatible servers ignore it.
		token = "unused"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(token),
		openai.WithHTTPClient(classifyingDoer{client: cfg.HTTPClient}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating openai client: %v", ErrInvalidConfig, err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm, lcembeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("%w: creating embedder: %v", ErrInvalidConfig, err)
	}

	return &openAIProvider{embedder: embedder, model: cfg.Model}, nil
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, &Error{Kind: KindMalformed, Provider: p.Name(), Err: err}
	}
	if len(vec) == 0 {
		return nil, malformed(p.Name(), "response has no embedding")
	}
	return vec, nil
}

func (p *openAIProvider) Name() string  { return config.ProviderOpenAI }
func (p *openAIProvider) Model() string { return p.model }
func (p *openAIProvider) Close() error  { return nil }
