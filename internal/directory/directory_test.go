package directory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/logging"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := New(NewMemoryStore(), logging.NewNop())
	require.NoError(t, err)
	return d
}

func register(t *testing.T, d *Directory, customerID string) (*Tenant, string) {
	t.Helper()
	tenant, key, err := d.Register(context.Background(), RegisterParams{
		CustomerID:          customerID,
		Name:                "Acme " + customerID,
		Email:               customerID + "@example.com",
		DatastoreEndpoint:   "https://" + customerID + ".supabase.co",
		DatastoreCredential: "anon-" + customerID,
	})
	require.NoError(t, err)
	return tenant, key
}

func TestRegister(t *testing.T) {
	t.Run("registration round-trips datastore fields", func(t *testing.T) {
		d := newTestDirectory(t)
		_, key := register(t, d, "c1")

		assert.True(t, strings.HasPrefix(key, "ak_"))
		assert.Len(t, key, 3+48)

		tenant, err := d.ResolveTenant(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "https://c1.supabase.co", tenant.DatastoreEndpoint)
		assert.Equal(t, "anon-c1", tenant.DatastoreCredential)
		assert.Equal(t, StatusActive, tenant.Status)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		d := newTestDirectory(t)
		register(t, d, "c1")

		_, _, err := d.Register(context.Background(), RegisterParams{
			CustomerID:          "c1",
			DatastoreEndpoint:   "https://other.supabase.co",
			DatastoreCredential: "anon-other",
		})
		require.Error(t, err)
		assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))
	})

	t.Run("missing required fields", func(t *testing.T) {
		d := newTestDirectory(t)
		_, _, err := d.Register(context.Background(), RegisterParams{CustomerID: "c1"})
		require.Error(t, err)
		assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	})
}

func TestResolveTenantNotFound(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.ResolveTenant(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("issued key validates and resolves customer", func(t *testing.T) {
		d := newTestDirectory(t)
		_, key := register(t, d, "c1")

		assert.True(t, d.ValidateKey(ctx, key))

		customerID, err := d.CustomerForKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "c1", customerID)
	})

	t.Run("unknown key is invalid", func(t *testing.T) {
		d := newTestDirectory(t)
		assert.False(t, d.ValidateKey(ctx, "ak_deadbeef"))

		_, err := d.CustomerForKey(ctx, "ak_deadbeef")
		assert.Equal(t, apierr.KindAuth, apierr.KindOf(err))
	})

	t.Run("expired key is invalid", func(t *testing.T) {
		d := newTestDirectory(t)
		register(t, d, "c1")

		expired := time.Now().Add(-time.Hour)
		require.NoError(t, d.store.InsertKey(ctx, &APIKey{
			Key:        "ak_expired",
			CustomerID: "c1",
			IsActive:   true,
			CreatedAt:  time.Now().Add(-2 * time.Hour),
			ExpiresAt:  &expired,
		}))

		assert.False(t, d.ValidateKey(ctx, "ak_expired"))
		_, err := d.CustomerForKey(ctx, "ak_expired")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("successful auth records usage timestamp", func(t *testing.T) {
		d := newTestDirectory(t)
		_, key := register(t, d, "c1")

		_, err := d.CustomerForKey(ctx, key)
		require.NoError(t, err)

		rec, err := d.store.GetKey(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, rec.LastUsedAt)
		assert.WithinDuration(t, time.Now(), *rec.LastUsedAt, time.Minute)
	})
}

func TestRotateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation invalidates the prior key", func(t *testing.T) {
		d := newTestDirectory(t)
		_, first := register(t, d, "c1")

		second, err := d.RotateKey(ctx, "c1")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		assert.False(t, d.ValidateKey(ctx, first))
		assert.True(t, d.ValidateKey(ctx, second))
	})

	t.Run("double rotation leaves exactly one active key", func(t *testing.T) {
		d := newTestDirectory(t)
		_, first := register(t, d, "c1")

		second, err := d.RotateKey(ctx, "c1")
		require.NoError(t, err)
		third, err := d.RotateKey(ctx, "c1")
		require.NoError(t, err)

		assert.False(t, d.ValidateKey(ctx, first))
		assert.False(t, d.ValidateKey(ctx, second))
		assert.True(t, d.ValidateKey(ctx, third))

		records, err := d.store.ListKeys(ctx)
		require.NoError(t, err)
		active := 0
		for _, rec := range records {
			if rec.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("rotation for unknown customer", func(t *testing.T) {
		d := newTestDirectory(t)
		_, err := d.RotateKey(ctx, "ghost")
		assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	_, key := register(t, d, "c1")

	tenant, err := d.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, tenant.Status)

	// Soft delete: record survives, key no longer validates.
	resolved, err := d.ResolveTenant(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, resolved.Status)
	assert.False(t, d.ValidateKey(ctx, key))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	register(t, d, "c1")
	register(t, d, "c2")
	register(t, d, "c3")

	_, err := d.Delete(ctx, "c3")
	require.NoError(t, err)

	stats, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Active: 2, Inactive: 1}, stats)
}

func TestListKeysRedaction(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	_, key := register(t, d, "c1")

	listings, err := d.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	assert.NotEqual(t, key, listings[0].KeyPrefix)
	assert.True(t, strings.HasSuffix(listings[0].KeyPrefix, "..."))
	assert.True(t, strings.HasPrefix(key, strings.TrimSuffix(listings[0].KeyPrefix, "...")))
	assert.Equal(t, "Acme c1", listings[0].CustomerName)
}

func TestGetIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	register(t, d, "c1")

	first, err := d.ResolveTenant(ctx, "c1")
	require.NoError(t, err)
	second, err := d.ResolveTenant(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	register(t, d, "c1")

	name := "Renamed"
	endpoint := "https://moved.supabase.co"
	updated, err := d.Update(ctx, "c1", TenantUpdate{Name: &name, DatastoreEndpoint: &endpoint})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "https://moved.supabase.co", updated.DatastoreEndpoint)
	assert.Equal(t, "c1@example.com", updated.Email, "untouched fields survive")
}
