package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// schema creates the directory tables. Keys reference customers so a key
// can never outlive its tenant row; rows are soft-deleted, never dropped.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id    TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    email          TEXT NOT NULL DEFAULT '',
    datastore_url  TEXT NOT NULL,
    datastore_key  TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'active',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_keys (
    api_key      TEXT PRIMARY KEY,
    customer_id  TEXT NOT NULL REFERENCES customers(customer_id),
    name         TEXT NOT NULL DEFAULT 'Default API Key',
    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_used_at TIMESTAMPTZ,
    expires_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_api_keys_customer ON api_keys (customer_id);
`

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the directory database and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to directory database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging directory database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring directory schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t *Tenant) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO customers (customer_id, name, email, datastore_url, datastore_key, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.CustomerID, t.Name, t.Email, t.DatastoreEndpoint, t.DatastoreCredential,
		string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrTenantExists
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, customerID string) (*Tenant, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT customer_id, name, email, datastore_url, datastore_key, status, created_at, updated_at
        FROM customers WHERE customer_id = $1`, customerID)
	return scanTenant(row)
}

func (s *PostgresStore) UpdateTenant(ctx context.Context, customerID string, upd TenantUpdate) (*Tenant, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE customers SET
            name          = COALESCE($2, name),
            email         = COALESCE($3, email),
            datastore_url = COALESCE($4, datastore_url),
            datastore_key = COALESCE($5, datastore_key),
            status        = COALESCE($6, status),
            updated_at    = now()
        WHERE customer_id = $1
        RETURNING customer_id, name, email, datastore_url, datastore_key, status, created_at, updated_at`,
		customerID, upd.Name, upd.Email, upd.DatastoreEndpoint, upd.DatastoreCredential, statusPtr(upd.Status),
	)
	return scanTenant(row)
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT customer_id, name, email, datastore_url, datastore_key, status, created_at, updated_at
        FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TenantStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
        SELECT count(*), count(*) FILTER (WHERE status = 'active')
        FROM customers`).Scan(&stats.Total, &stats.Active)
	if err != nil {
		return Stats{}, err
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

func (s *PostgresStore) InsertKey(ctx context.Context, k *APIKey) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO api_keys (api_key, customer_id, name, is_active, created_at, last_used_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.Key, k.CustomerID, k.Name, k.IsActive, k.CreatedAt, k.LastUsedAt, k.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) GetKey(ctx context.Context, key string) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT api_key, customer_id, name, is_active, created_at, last_used_at, expires_at
        FROM api_keys WHERE api_key = $1`, key)
	return scanKey(row)
}

func (s *PostgresStore) ActiveKey(ctx context.Context, customerID string) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT api_key, customer_id, name, is_active, created_at, last_used_at, expires_at
        FROM api_keys
        WHERE customer_id = $1 AND is_active
        ORDER BY created_at DESC
        LIMIT 1`, customerID)
	return scanKey(row)
}

func (s *PostgresStore) DeactivateKeys(ctx context.Context, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE customer_id = $1`, customerID)
	return err
}

func (s *PostgresStore) ListKeys(ctx context.Context) ([]KeyRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT k.api_key, k.customer_id, k.name, k.is_active, k.created_at, k.last_used_at, k.expires_at, c.name
        FROM api_keys k
        JOIN customers c ON c.customer_id = k.customer_id
        ORDER BY k.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyRecord
	for rows.Next() {
		var rec KeyRecord
		if err := rows.Scan(&rec.Key, &rec.CustomerID, &rec.Name, &rec.IsActive,
			&rec.CreatedAt, &rec.LastUsedAt, &rec.ExpiresAt, &rec.CustomerName); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TouchKey(ctx context.Context, key string, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE api_key = $1`, key, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var status string
	err := row.Scan(&t.CustomerID, &t.Name, &t.Email, &t.DatastoreEndpoint,
		&t.DatastoreCredential, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

func scanKey(row rowScanner) (*APIKey, error) {
	var k APIKey
	err := row.Scan(&k.Key, &k.CustomerID, &k.Name, &k.IsActive,
		&k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &k, nil
}

// statusPtr converts *Status to *string for COALESCE binding.
func statusPtr(s *Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
