package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	supabaseTimeout = 30 * time.Second

	// matchFunction is the stored procedure every PostgREST-backed tenant
	// exposes for embedding search.
	matchFunction = "match_documents"
)

// SupabaseStore talks to a PostgREST-compatible datastore (Supabase).
// Vector search goes through the match_documents RPC; exact lookups read
// the products table directly.
type SupabaseStore struct {
	endpoint   string
	credential string
	httpClient *http.Client
}

// NewSupabaseStore creates a store for one tenant endpoint. The endpoint
// is the project base URL without the /rest/v1 suffix.
func NewSupabaseStore(endpoint, credential string) (*SupabaseStore, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return &SupabaseStore{
		endpoint:   u.Scheme + "://" + u.Host + u.Path,
		credential: credential,
		httpClient: &http.Client{Timeout: supabaseTimeout},
	}, nil
}

type matchRequest struct {
	QueryEmbedding []float32      `json:"query_embedding"`
	MatchThreshold float32        `json:"match_threshold"`
	MatchCount     int            `json:"match_count"`
	Filter         map[string]any `json:"filter"`
}

type matchRow struct {
	ID         json.Number    `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float32        `json:"similarity"`
}

// SimilaritySearch invokes the match_documents RPC scoped to productCode.
func (s *SupabaseStore) SimilaritySearch(ctx context.Context, embedding []float32, productCode string, k int, threshold float32) ([]Record, error) {
	body := matchRequest{
		QueryEmbedding: embedding,
		MatchThreshold: threshold,
		MatchCount:     k,
		Filter:         map[string]any{"productCode": productCode},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal match request: %w", err)
	}

	reqURL := s.endpoint + "/rest/v1/rpc/" + matchFunction
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	var rows []matchRow
	if err := s.do(req, &rows); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			ID:          row.ID.String(),
			ProductCode: productCode,
			Content:     row.Content,
			Attributes:  row.Metadata,
			Score:       row.Similarity,
		}
		if code, ok := row.Metadata["productCode"].(string); ok && code != "" {
			rec.ProductCode = code
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExactMatch reads the products table filtered on product_code.
func (s *SupabaseStore) ExactMatch(ctx context.Context, productCode string, limit int) ([]Record, error) {
	q := url.Values{}
	q.Set("product_code", "eq."+productCode)
	q.Set("limit", strconv.Itoa(limit))
	reqURL := s.endpoint + "/rest/v1/products?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	s.authorize(req)

	var rows []map[string]any
	if err := s.do(req, &rows); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{ProductCode: productCode, Attributes: map[string]any{}}
		for key, val := range row {
			switch key {
			case "id":
				rec.ID = fmt.Sprint(val)
			case "product_code":
				if code, ok := val.(string); ok && code != "" {
					rec.ProductCode = code
				}
			case "content", "description":
				if text, ok := val.(string); ok && rec.Content == "" {
					rec.Content = text
					continue
				}
				rec.Attributes[key] = val
			default:
				rec.Attributes[key] = val
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping performs a cheap authenticated read to verify credentials.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/rest/v1/products?limit=1", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	s.authorize(req)

	var rows []map[string]any
	return s.do(req, &rows)
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (s *SupabaseStore) Close() error { return nil }

func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("apikey", s.credential)
	req.Header.Set("Authorization", "Bearer "+s.credential)
}

func (s *SupabaseStore) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read datastore response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("datastore returned status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode datastore response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
