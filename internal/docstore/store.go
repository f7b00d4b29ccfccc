// Package docstore provides access to a tenant's own backing document
// store: vector similarity search plus the exact-match relational lookup
// the retrieval pipeline degrades to.
//
// Each tenant brings its own endpoint and credential. Backends are
// selected by endpoint scheme:
//
//	https://...   PostgREST-compatible store (Supabase)
//	qdrant://...  Qdrant collection over gRPC
//	memory://...  embedded in-process store (degraded/test mode)
package docstore

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrInvalidEndpoint indicates an endpoint no backend can serve.
	ErrInvalidEndpoint = errors.New("invalid datastore endpoint")

	// ErrUnreachable indicates the tenant datastore did not respond.
	ErrUnreachable = errors.New("datastore unreachable")
)

// Record is one tenant-owned product document. Attributes carries the
// tenant's free-form columns verbatim; the answer generator serializes
// them without interpretation.
type Record struct {
	ID          string         `json:"id,omitempty"`
	ProductCode string         `json:"productCode"`
	Content     string         `json:"content,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Score       float32        `json:"score,omitempty"`
}

// Store is the per-tenant document store contract.
//
// SimilaritySearch and ExactMatch are the two retrieval paths; the
// retriever never merges their results.
type Store interface {
	// SimilaritySearch returns up to k records scoped to productCode whose
	// embedding similarity to the query vector is at least threshold,
	// ordered by similarity (highest first).
	SimilaritySearch(ctx context.Context, embedding []float32, productCode string, k int, threshold float32) ([]Record, error)

	// ExactMatch returns up to limit records with the exact product code.
	// Used when the tenant has no embedded rows for the product yet.
	ExactMatch(ctx context.Context, productCode string, limit int) ([]Record, error)

	// Ping verifies the datastore is reachable with the held credential.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
