package docstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSupabaseStore(t *testing.T) {
	t.Run("valid endpoint", func(t *testing.T) {
		store, err := NewSupabaseStore("https://project.supabase.co", "secret")
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewSupabaseStore("://nope", "secret")
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})

	t.Run("rejects wrong scheme", func(t *testing.T) {
		_, err := NewSupabaseStore("ftp://project.supabase.co", "secret")
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})
}

func TestSupabaseStoreSimilaritySearch(t *testing.T) {
	var gotBody matchRequest
	var gotAPIKey, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/v1/rpc/match_documents", r.URL.Path)
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":         17,
				"content":    "Steel widget, 40mm",
				"similarity": 0.91,
				"metadata":   map[string]any{"productCode": "W-40", "color": "gray"},
			},
		})
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(srv.URL, "svc-role-key")
	require.NoError(t, err)

	records, err := store.SimilaritySearch(context.Background(), []float32{0.1, 0.2}, "W-40", 10, 0.1)
	require.NoError(t, err)

	assert.Equal(t, "svc-role-key", gotAPIKey)
	assert.Equal(t, "Bearer svc-role-key", gotAuth)
	assert.Equal(t, []float32{0.1, 0.2}, gotBody.QueryEmbedding)
	assert.Equal(t, float32(0.1), gotBody.MatchThreshold)
	assert.Equal(t, 10, gotBody.MatchCount)
	assert.Equal(t, map[string]any{"productCode": "W-40"}, gotBody.Filter)

	require.Len(t, records, 1)
	assert.Equal(t, "17", records[0].ID)
	assert.Equal(t, "W-40", records[0].ProductCode)
	assert.Equal(t, "Steel widget, 40mm", records[0].Content)
	assert.InDelta(t, 0.91, records[0].Score, 0.001)
	assert.Equal(t, "gray", records[0].Attributes["color"])
}

func TestSupabaseStoreExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/rest/v1/products", r.URL.Path)
		require.Equal(t, "eq.W-40", r.URL.Query().Get("product_code"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 3, "product_code": "W-40", "description": "Steel widget", "price": 12.5},
		})
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(srv.URL, "key")
	require.NoError(t, err)

	records, err := store.ExactMatch(context.Background(), "W-40", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3", records[0].ID)
	assert.Equal(t, "W-40", records[0].ProductCode)
	assert.Equal(t, "Steel widget", records[0].Content)
	assert.Equal(t, 12.5, records[0].Attributes["price"])
}

func TestSupabaseStoreErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		store, err := NewSupabaseStore(srv.URL, "bad-key")
		require.NoError(t, err)

		_, err = store.SimilaritySearch(context.Background(), []float32{0.1}, "W-40", 10, 0.1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("unreachable host", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		store, err := NewSupabaseStore(srv.URL, "key")
		require.NoError(t, err)

		err = store.Ping(context.Background())
		assert.ErrorIs(t, err, ErrUnreachable)
	})
}
