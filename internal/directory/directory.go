// Package directory implements the tenant directory: it maps customer
// identifiers to per-tenant datastore credentials and manages the API-key
// lifecycle (issue, validate, rotate, revoke, usage accounting).
package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/logging"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrTenantNotFound is returned when no tenant has the customer ID.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantExists is returned on duplicate registration.
	ErrTenantExists = errors.New("tenant already exists")

	// ErrKeyNotFound is returned when no record matches an API key.
	ErrKeyNotFound = errors.New("api key not found")
)

// Status is the lifecycle state of a tenant. Tenants are never physically
// deleted; delete toggles the status so audit history survives.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Tenant is a registered customer with its own backing datastore.
type Tenant struct {
	CustomerID          string    `json:"customerId"`
	Name                string    `json:"name"`
	Email               string    `json:"email,omitempty"`
	DatastoreEndpoint   string    `json:"datastoreUrl"`
	DatastoreCredential string    `json:"-"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// APIKey is an opaque credential bound to a tenant. A tenant may hold many
// historical keys but at most one active key at any time.
type APIKey struct {
	Key        string     `json:"key"`
	CustomerID string     `json:"customerId"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the key is past its expiry at the given instant.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// KeyListing is the redacted, prefix-only form of a key used by the
// listing endpoint. The full secret never leaves issuance.
type KeyListing struct {
	CustomerID   string     `json:"customerId"`
	CustomerName string     `json:"customerName"`
	KeyPrefix    string     `json:"apiKey"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// KeyRecord is a stored key joined with its tenant's display name.
type KeyRecord struct {
	APIKey
	CustomerName string
}

// TenantUpdate carries the mutable tenant fields. Nil pointers leave the
// stored value untouched.
type TenantUpdate struct {
	Name                *string
	Email               *string
	DatastoreEndpoint   *string
	DatastoreCredential *string
	Status              *Status
}

// Stats is the aggregate tenant count breakdown.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// Store is the persistence interface for tenants and API keys.
// Implementations: PostgresStore (production), MemoryStore (tests, dev).
type Store interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, customerID string) (*Tenant, error)
	UpdateTenant(ctx context.Context, customerID string, upd TenantUpdate) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	TenantStats(ctx context.Context) (Stats, error)

	InsertKey(ctx context.Context, k *APIKey) error
	GetKey(ctx context.Context, key string) (*APIKey, error)
	ActiveKey(ctx context.Context, customerID string) (*APIKey, error)
	// DeactivateKeys deactivates every key for the customer atomically,
	// so two keys are never simultaneously active.
	DeactivateKeys(ctx context.Context, customerID string) error
	ListKeys(ctx context.Context) ([]KeyRecord, error)
	TouchKey(ctx context.Context, key string, usedAt time.Time) error

	Close()
}

// RegisterParams are the inputs to tenant registration.
type RegisterParams struct {
	CustomerID          string
	Name                string
	Email               string
	DatastoreEndpoint   string
	DatastoreCredential string
}

// Directory is the tenant directory service.
type Directory struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Directory backed by the given store.
func New(store Store, logger *logging.Logger) (*Directory, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Directory{
		store:  store,
		logger: logger.Named("directory"),
		now:    time.Now,
	}, nil
}

// Register creates a tenant and issues its first API key.
// Returns the created tenant and the full key (shown only once).
func (d *Directory) Register(ctx context.Context, p RegisterParams) (*Tenant, string, error) {
	if p.CustomerID == "" || p.DatastoreEndpoint == "" || p.DatastoreCredential == "" {
		return nil, "", apierr.Validation("customerId, datastoreUrl and datastoreKey are required")
	}

	now := d.now().UTC()
	tenant := &Tenant{
		CustomerID:          p.CustomerID,
		Name:                p.Name,
		Email:               p.Email,
		DatastoreEndpoint:   p.DatastoreEndpoint,
		DatastoreCredential: p.DatastoreCredential,
		Status:              StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := d.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, ErrTenantExists) {
			return nil, "", apierr.Conflict("customer %s already exists", p.CustomerID)
		}
		return nil, "", fmt.Errorf("creating tenant: %w", err)
	}

	key, err := d.IssueKey(ctx, p.CustomerID)
	if err != nil {
		return nil, "", err
	}

	d.logger.Info(ctx, "tenant registered",
		zap.String("customer_id", p.CustomerID),
		zap.String("name", p.Name))

	return tenant, key, nil
}

// ResolveTenant returns the tenant for a customer ID.
func (d *Directory) ResolveTenant(ctx context.Context, customerID string) (*Tenant, error) {
	tenant, err := d.store.GetTenant(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, apierr.NotFound("customer %s not found", customerID)
		}
		return nil, fmt.Errorf("resolving tenant %s: %w", customerID, err)
	}
	return tenant, nil
}

// Update mutates tenant fields and returns the updated record.
func (d *Directory) Update(ctx context.Context, customerID string, upd TenantUpdate) (*Tenant, error) {
	tenant, err := d.store.UpdateTenant(ctx, customerID, upd)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, apierr.NotFound("customer %s not found", customerID)
		}
		return nil, fmt.Errorf("updating tenant %s: %w", customerID, err)
	}
	return tenant, nil
}

// Delete soft-deletes a tenant: status flips to inactive and every key is
// deactivated. The record stays for audit history.
func (d *Directory) Delete(ctx context.Context, customerID string) (*Tenant, error) {
	inactive := StatusInactive
	tenant, err := d.store.UpdateTenant(ctx, customerID, TenantUpdate{Status: &inactive})
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, apierr.NotFound("customer %s not found", customerID)
		}
		return nil, fmt.Errorf("deleting tenant %s: %w", customerID, err)
	}

	if err := d.store.DeactivateKeys(ctx, customerID); err != nil {
		return nil, fmt.Errorf("deactivating keys for %s: %w", customerID, err)
	}

	d.logger.Info(ctx, "tenant deactivated", zap.String("customer_id", customerID))
	return tenant, nil
}

// List returns all tenants, newest first.
func (d *Directory) List(ctx context.Context) ([]Tenant, error) {
	return d.store.ListTenants(ctx)
}

// Stats returns aggregate tenant counts.
func (d *Directory) Stats(ctx context.Context) (Stats, error) {
	return d.store.TenantStats(ctx)
}

// ValidateKey reports whether the key exists, is active, and is unexpired.
// Lookup failures count as invalid and are logged, never surfaced.
func (d *Directory) ValidateKey(ctx context.Context, key string) bool {
	rec, err := d.store.GetKey(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			d.logger.Error(ctx, "api key lookup failed", zap.Error(err))
		}
		return false
	}
	return rec.IsActive && !rec.Expired(d.now())
}

// CustomerForKey resolves the customer ID behind a valid key and records
// the usage timestamp. The timestamp write is best-effort: a failure is
// logged and never blocks the caller.
func (d *Directory) CustomerForKey(ctx context.Context, key string) (string, error) {
	rec, err := d.store.GetKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", apierr.Auth("invalid API key")
		}
		return "", fmt.Errorf("looking up api key: %w", err)
	}
	if !rec.IsActive {
		return "", apierr.Auth("API key is inactive")
	}
	if rec.Expired(d.now()) {
		return "", apierr.Auth("API key has expired")
	}

	if err := d.store.TouchKey(ctx, key, d.now().UTC()); err != nil {
		d.logger.Warn(ctx, "usage timestamp update failed",
			logging.APIKey("api_key", key), zap.Error(err))
	}

	return rec.CustomerID, nil
}

// IssueKey creates and persists a new active key for the customer.
// The key is an opaque random token; it embeds no recoverable secret.
func (d *Directory) IssueKey(ctx context.Context, customerID string) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}

	rec := &APIKey{
		Key:        key,
		CustomerID: customerID,
		Name:       "Default API Key",
		IsActive:   true,
		CreatedAt:  d.now().UTC(),
	}
	if err := d.store.InsertKey(ctx, rec); err != nil {
		return "", fmt.Errorf("persisting api key: %w", err)
	}

	d.logger.Info(ctx, "api key issued",
		zap.String("customer_id", customerID),
		logging.APIKey("api_key", key))

	return key, nil
}

// RotateKey deactivates every prior key for the customer, then issues a
// new one. A brief window with zero active keys is acceptable; two valid
// active keys at once is not.
func (d *Directory) RotateKey(ctx context.Context, customerID string) (string, error) {
	if _, err := d.ResolveTenant(ctx, customerID); err != nil {
		return "", err
	}
	if err := d.store.DeactivateKeys(ctx, customerID); err != nil {
		return "", fmt.Errorf("deactivating keys for %s: %w", customerID, err)
	}
	return d.IssueKey(ctx, customerID)
}

// ActiveKey returns the customer's current active key record.
func (d *Directory) ActiveKey(ctx context.Context, customerID string) (*APIKey, error) {
	rec, err := d.store.ActiveKey(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, apierr.NotFound("no active API key for customer %s", customerID)
		}
		return nil, fmt.Errorf("fetching active key for %s: %w", customerID, err)
	}
	return rec, nil
}

// ListKeys returns every key in redacted, prefix-only form.
func (d *Directory) ListKeys(ctx context.Context) ([]KeyListing, error) {
	records, err := d.store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}

	listings := make([]KeyListing, len(records))
	for i, rec := range records {
		listings[i] = KeyListing{
			CustomerID:   rec.CustomerID,
			CustomerName: rec.CustomerName,
			KeyPrefix:    logging.KeyPrefix(rec.Key),
			Name:         rec.Name,
			IsActive:     rec.IsActive,
			CreatedAt:    rec.CreatedAt,
			LastUsedAt:   rec.LastUsedAt,
			ExpiresAt:    rec.ExpiresAt,
		}
	}
	return listings, nil
}

// generateKey produces an unguessable opaque token: "ak_" plus 48 hex
// characters from crypto/rand.
func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ak_" + hex.EncodeToString(b), nil
}
