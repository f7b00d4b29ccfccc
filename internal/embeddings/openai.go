package embeddings

import (
	"context"
	"fmt"
	"strings"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider generates embeddings through an OpenAI-compatible API
// via langchaingo.
type OpenAIProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	dimension int
}

// NewOpenAIProvider creates an embedding provider for the configured
// model. The base URL may point at any OpenAI-compatible server.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  embedder,
		dimension: dimensionForModel(cfg.Model),
	}, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the provider is a stateless HTTP client.
func (p *OpenAIProvider) Close() error {
	return nil
}
