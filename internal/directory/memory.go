package directory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-node development.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	keys    map[string]*APIKey // key token -> record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		keys:    make(map[string]*APIKey),
	}
}

func (s *MemoryStore) CreateTenant(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.CustomerID]; ok {
		return ErrTenantExists
	}
	cp := *t
	s.tenants[t.CustomerID] = &cp
	return nil
}

func (s *MemoryStore) GetTenant(_ context.Context, customerID string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[customerID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) UpdateTenant(_ context.Context, customerID string, upd TenantUpdate) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[customerID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.Email != nil {
		t.Email = *upd.Email
	}
	if upd.DatastoreEndpoint != nil {
		t.DatastoreEndpoint = *upd.DatastoreEndpoint
	}
	if upd.DatastoreCredential != nil {
		t.DatastoreCredential = *upd.DatastoreCredential
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	t.UpdatedAt = time.Now().UTC()

	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTenants(_ context.Context) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	// Newest first, matching the Postgres ordering.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) TenantStats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.tenants)}
	for _, t := range s.tenants {
		if t.Status == StatusActive {
			stats.Active++
		}
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

func (s *MemoryStore) InsertKey(_ context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *k
	s.keys[k.Key] = &cp
	return nil
}

func (s *MemoryStore) GetKey(_ context.Context, key string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ActiveKey(_ context.Context, customerID string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *APIKey
	for _, rec := range s.keys {
		if rec.CustomerID != customerID || !rec.IsActive {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}
	if newest == nil {
		return nil, ErrKeyNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) DeactivateKeys(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.keys {
		if rec.CustomerID == customerID {
			rec.IsActive = false
		}
	}
	return nil
}

func (s *MemoryStore) ListKeys(_ context.Context) ([]KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]KeyRecord, 0, len(s.keys))
	for _, rec := range s.keys {
		name := ""
		if t, ok := s.tenants[rec.CustomerID]; ok {
			name = t.Name
		}
		out = append(out, KeyRecord{APIKey: *rec, CustomerName: name})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) TouchKey(_ context.Context, key string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[key]
	if !ok {
		return ErrKeyNotFound
	}
	rec.LastUsedAt = &usedAt
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
