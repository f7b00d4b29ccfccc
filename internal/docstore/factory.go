package docstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/logging"
)

// Factory opens tenant document stores and caches them per endpoint and
// credential, so concurrent questions for the same tenant share one
// connection.
type Factory struct {
	logger *logging.Logger

	mu     sync.Mutex
	stores map[string]Store

	// memStores are shared by name so tests and the degraded default mode
	// can seed a store before requests arrive.
	memStores map[string]*MemoryStore
}

// NewFactory creates an empty factory.
func NewFactory(logger *logging.Logger) *Factory {
	return &Factory{
		logger:    logger,
		stores:    make(map[string]Store),
		memStores: make(map[string]*MemoryStore),
	}
}

// Open returns a store for the endpoint, reusing a cached connection
// when one exists for the same endpoint and credential.
func (f *Factory) Open(endpoint, credential string) (Store, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := endpoint + "\x00" + credential
	if store, ok := f.stores[key]; ok {
		return store, nil
	}

	var store Store
	switch u.Scheme {
	case "http", "https":
		store, err = NewSupabaseStore(endpoint, credential)
	case "qdrant", "qdrants":
		store, err = NewQdrantStore(endpoint, credential)
	case "memory":
		store, err = f.memoryStoreLocked(u)
	default:
		return nil, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidEndpoint, endpoint, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	f.stores[key] = store
	return store, nil
}

// Memory returns the named shared in-memory store, creating it if
// needed. The same store is returned for memory://<name> endpoints.
func (f *Factory) Memory(name string) (*MemoryStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memoryByNameLocked(name)
}

func (f *Factory) memoryStoreLocked(u *url.URL) (Store, error) {
	name := u.Host
	if name == "" {
		name = strings.Trim(u.Path, "/")
	}
	if name == "" {
		return nil, fmt.Errorf("%w: memory endpoint requires a name", ErrInvalidEndpoint)
	}
	return f.memoryByNameLocked(name)
}

func (f *Factory) memoryByNameLocked(name string) (*MemoryStore, error) {
	if store, ok := f.memStores[name]; ok {
		return store, nil
	}
	store, err := NewMemoryStore()
	if err != nil {
		return nil, err
	}
	f.memStores[name] = store
	f.logger.Debug(context.Background(), "created in-memory document store", zap.String("name", name))
	return store, nil
}

// Close closes every cached store. Errors are aggregated.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for key, store := range f.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.stores, key)
	}
	f.memStores = make(map[string]*MemoryStore)
	return firstErr
}
