package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// MemoryStore is an embedded, process-local document store backed by
// chromem. It serves tests and the AllowDefault degraded mode where a
// tenant has no datastore of its own. Records are seeded through
// AddRecord with precomputed embeddings.
type MemoryStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection

	// byProduct mirrors seeded records for exact-code lookups, which
	// chromem cannot answer without a query vector.
	byProduct map[string][]Record
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() (*MemoryStore, error) {
	db := chromem.NewDB()
	// Embeddings always arrive precomputed, so the embedding func is never
	// called; chromem still requires one at creation.
	collection, err := db.CreateCollection("products", nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("memory store does not embed documents")
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &MemoryStore{
		db:         db,
		collection: collection,
		byProduct:  make(map[string][]Record),
	}, nil
}

// AddRecord seeds one record with its embedding.
func (s *MemoryStore) AddRecord(ctx context.Context, rec Record, embedding []float32) error {
	if rec.ID == "" || rec.ProductCode == "" {
		return fmt.Errorf("record requires id and product code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store closed")
	}

	metadata := map[string]string{"product_code": rec.ProductCode}
	for key, val := range rec.Attributes {
		if str, ok := val.(string); ok {
			metadata[key] = str
		}
	}
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	s.byProduct[rec.ProductCode] = append(s.byProduct[rec.ProductCode], rec)
	return nil
}

// SimilaritySearch queries the chromem collection scoped to productCode.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, embedding []float32, productCode string, k int, threshold float32) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store closed")
	}

	// chromem rejects k larger than the collection size.
	if count := s.collection.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, map[string]string{"product_code": productCode}, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		rec := Record{
			ID:          r.ID,
			ProductCode: productCode,
			Content:     r.Content,
			Score:       r.Similarity,
			Attributes:  make(map[string]any, len(r.Metadata)),
		}
		for key, val := range r.Metadata {
			if key == "product_code" {
				continue
			}
			rec.Attributes[key] = val
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExactMatch returns seeded records for the product code.
func (s *MemoryStore) ExactMatch(ctx context.Context, productCode string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store closed")
	}

	seeded := s.byProduct[productCode]
	if len(seeded) > limit {
		seeded = seeded[:limit]
	}
	records := make([]Record, len(seeded))
	copy(records, seeded)
	return records, nil
}

// Ping always succeeds while the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store closed")
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
