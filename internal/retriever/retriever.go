// Package retriever resolves a customer's datastore and pulls the
// product records relevant to a question: embedding similarity first,
// exact product-code lookup when the tenant has no embedded rows yet.
package retriever

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/directory"
	"github.com/fyrsmithlabs/askd/internal/docstore"
	"github.com/fyrsmithlabs/askd/internal/embeddings"
	"github.com/fyrsmithlabs/askd/internal/logging"
)

// Retrieval parameters. Tenant stores expose the same match function, so
// these hold across backends.
const (
	matchCount     = 10
	matchThreshold = 0.1
)

// Config controls the shared fallback datastore.
type Config struct {
	// DefaultEndpoint and DefaultCredential identify a shared datastore
	// used for tenants registered without one.
	DefaultEndpoint   string
	DefaultCredential string

	// AllowDefault enables the shared-store fallback. Off by default;
	// tenants without a datastore are rejected.
	AllowDefault bool
}

// Result carries retrieved records and how they were found.
type Result struct {
	Records []docstore.Record

	// ExactMatch is true when similarity search found nothing and the
	// records come from the product-code lookup instead.
	ExactMatch bool

	// Embedding is the query vector, computed at most once per question.
	Embedding []float32
}

// Retriever wires tenant resolution, query embedding, and the tenant's
// document store into one retrieval call.
type Retriever struct {
	directory *directory.Directory
	embedder  embeddings.Provider
	stores    *docstore.Factory
	cfg       Config
	logger    *logging.Logger
}

// New creates a Retriever.
func New(dir *directory.Directory, embedder embeddings.Provider, stores *docstore.Factory, cfg Config, logger *logging.Logger) *Retriever {
	return &Retriever{
		directory: dir,
		embedder:  embedder,
		stores:    stores,
		cfg:       cfg,
		logger:    logger.Named("retriever"),
	}
}

// Retrieve returns the records backing an answer about productCode.
// Tenant resolution and query embedding run concurrently; neither is
// useful without the other.
func (r *Retriever) Retrieve(ctx context.Context, customerID, productCode, question string) (*Result, error) {
	var (
		tenant    *directory.Tenant
		embedding []float32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := r.directory.ResolveTenant(gctx, customerID)
		if err != nil {
			return err
		}
		tenant = t
		return nil
	})
	g.Go(func() error {
		vec, err := r.embedder.EmbedQuery(gctx, question)
		if err != nil {
			return apierr.Upstream(err, "embedding the question failed")
		}
		embedding = vec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store, err := r.storeFor(ctx, tenant)
	if err != nil {
		return nil, err
	}

	records, err := store.SimilaritySearch(ctx, embedding, productCode, matchCount, matchThreshold)
	if err != nil {
		return nil, apierr.Upstream(err, "searching the customer datastore failed")
	}
	if len(records) > 0 {
		return &Result{Records: records, Embedding: embedding}, nil
	}

	// No embedded rows matched; fall back to the exact product-code
	// lookup. The two result sets are never merged.
	records, err = store.ExactMatch(ctx, productCode, matchCount)
	if err != nil {
		return nil, apierr.Upstream(err, "looking up the product failed")
	}
	r.logger.Debug(ctx, "similarity search empty, used exact lookup",
		zap.String("product.code", productCode),
		zap.Int("records", len(records)))
	return &Result{Records: records, ExactMatch: true, Embedding: embedding}, nil
}

// TestConnection verifies a tenant's datastore is reachable.
func (r *Retriever) TestConnection(ctx context.Context, customerID string) error {
	tenant, err := r.directory.ResolveTenant(ctx, customerID)
	if err != nil {
		return err
	}
	store, err := r.storeFor(ctx, tenant)
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return apierr.Upstream(err, "customer datastore unreachable")
	}
	return nil
}

func (r *Retriever) storeFor(ctx context.Context, tenant *directory.Tenant) (docstore.Store, error) {
	endpoint := tenant.DatastoreEndpoint
	credential := tenant.DatastoreCredential
	if endpoint == "" {
		if !r.cfg.AllowDefault || r.cfg.DefaultEndpoint == "" {
			return nil, apierr.Internal(nil, "customer has no datastore configured")
		}
		r.logger.Warn(ctx, "customer has no datastore, using shared default",
			zap.String("customer.id", tenant.CustomerID))
		endpoint = r.cfg.DefaultEndpoint
		credential = r.cfg.DefaultCredential
	}

	store, err := r.stores.Open(endpoint, credential)
	if err != nil {
		return nil, apierr.Internal(err, "opening the customer datastore failed")
	}
	return store, nil
}
