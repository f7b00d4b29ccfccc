package docstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQdrantStoreEndpointParsing(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{name: "valid", endpoint: "qdrant://qdrant.internal:6334/products"},
		{name: "valid tls", endpoint: "qdrants://qdrant.internal/products"},
		{name: "default port", endpoint: "qdrant://qdrant.internal/products"},
		{name: "missing collection", endpoint: "qdrant://qdrant.internal:6334", wantErr: true},
		{name: "nested path", endpoint: "qdrant://host:6334/a/b", wantErr: true},
		{name: "missing host", endpoint: "qdrant:///products", wantErr: true},
		{name: "bad port", endpoint: "qdrant://host:notaport/products", wantErr: true},
		{name: "wrong scheme", endpoint: "https://host/products", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewQdrantStore(tt.endpoint, "key")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEndpoint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "products", store.collection)
			store.Close()
		})
	}
}

func TestRecordFromPayload(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"content":      {Kind: &qdrant.Value_StringValue{StringValue: "Steel widget"}},
		"product_code": {Kind: &qdrant.Value_StringValue{StringValue: "W-40"}},
		"stock":        {Kind: &qdrant.Value_IntegerValue{IntegerValue: 12}},
		"price":        {Kind: &qdrant.Value_DoubleValue{DoubleValue: 12.5}},
		"active":       {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
	}

	rec := recordFromPayload(payload, "fallback")
	assert.Equal(t, "Steel widget", rec.Content)
	assert.Equal(t, "W-40", rec.ProductCode)
	assert.Equal(t, int64(12), rec.Attributes["stock"])
	assert.Equal(t, 12.5, rec.Attributes["price"])
	assert.Equal(t, true, rec.Attributes["active"])
	assert.NotContains(t, rec.Attributes, "content")
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "", pointID(nil))
	assert.Equal(t, "abc-123", pointID(qdrant.NewID("abc-123")))
	assert.Equal(t, "42", pointID(qdrant.NewIDNum(42)))
}
