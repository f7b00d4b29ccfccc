// Package embeddings provides query-embedding generation for retrieval.
//
// The gateway embeds the customer question once per request; the vector is
// shared by every downstream step that needs it. Embeddings must come from
// the same model family the tenant used to embed its product records, so
// the provider is an external OpenAI-compatible API, not a local model.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates an empty query text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Provider generates vector embeddings from text.
type Provider interface {
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for the embedding provider.
type Config struct {
	// BaseURL is the API base, e.g. https://api.openai.com/v1.
	BaseURL string

	// Model is the embedding model, e.g. text-embedding-3-small.
	Model string

	// APIKey is the provider credential.
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	return nil
}

// dimensionForModel returns the embedding dimension for known OpenAI
// models. Unknown models fall back to 1536.
func dimensionForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}
