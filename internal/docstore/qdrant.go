package docstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const defaultQdrantPort = 6334

// QdrantStore serves tenants whose documents live in a Qdrant collection.
// Endpoints take the form qdrant://host:port/collection (qdrants:// for
// TLS); the credential is passed as the Qdrant API key.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore parses the endpoint and opens a gRPC connection.
func NewQdrantStore(endpoint, credential string) (*QdrantStore, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "qdrant" && u.Scheme != "qdrants") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	collection := strings.Trim(u.Path, "/")
	if collection == "" || strings.Contains(collection, "/") {
		return nil, fmt.Errorf("%w: %q: missing collection name", ErrInvalidEndpoint, endpoint)
	}

	port := defaultQdrantPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: %q: invalid port", ErrInvalidEndpoint, endpoint)
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "qdrants",
		APIKey: credential,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// SimilaritySearch queries the collection with a product_code keyword
// filter and a score threshold.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, embedding []float32, productCode string, k int, threshold float32) ([]Record, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         productFilter(productCode),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}

	records := make([]Record, 0, len(points))
	for _, point := range points {
		rec := recordFromPayload(point.Payload, productCode)
		rec.ID = pointID(point.Id)
		rec.Score = point.Score
		records = append(records, rec)
	}
	return records, nil
}

// ExactMatch scrolls the collection for points carrying the product code,
// no vector involved.
func (s *QdrantStore) ExactMatch(ctx context.Context, productCode string, limit int) ([]Record, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         productFilter(productCode),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scrolling collection %s: %w", s.collection, err)
	}

	records := make([]Record, 0, len(points))
	for _, point := range points {
		rec := recordFromPayload(point.Payload, productCode)
		rec.ID = pointID(point.Id)
		records = append(records, rec)
	}
	return records, nil
}

// Ping verifies the gRPC connection.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func productFilter(productCode string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "product_code",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: productCode},
						},
					},
				},
			},
		},
	}
}

func recordFromPayload(payload map[string]*qdrant.Value, productCode string) Record {
	rec := Record{ProductCode: productCode, Attributes: make(map[string]any, len(payload))}
	for key, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			switch key {
			case "content":
				rec.Content = val.StringValue
			case "product_code":
				rec.ProductCode = val.StringValue
			default:
				rec.Attributes[key] = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			rec.Attributes[key] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			rec.Attributes[key] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			rec.Attributes[key] = val.BoolValue
		}
	}
	return rec
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
