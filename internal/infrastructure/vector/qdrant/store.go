// Package qdrant implements the document store accessor over the Qdrant
// REST API. The store is populated by an external ingestion job; this client
// only searches and scrolls.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const mmrLambda = 0.5

type Store struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
}

func New(baseURL, collection string, embedder ports.Embedder) *Store {
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
	}
}

// Search embeds the query and runs a similarity search restricted to
// documents whose payload matches the market and domain exactly. Diversity
// mode over-fetches FetchK candidates and subselects K by maximal marginal
// relevance.
func (s *Store) Search(ctx context.Context, query ports.SearchQuery) ([]domain.Document, error) {
	queryVector, err := s.embedder.EmbedQuery(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := query.K
	withVector := false
	if query.Mode == ports.SearchModeDiversity {
		if query.FetchK > limit {
			limit = query.FetchK
		}
		withVector = true
	}

	reqBody := map[string]any{
		"query":        queryVector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVector,
		"filter":       partitionFilter(query.Market, query.Domain),
	}

	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, "/points/query", reqBody, &resp, "search"); err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant search", err)
	}

	points := resp.Result.Points
	if query.Mode == ports.SearchModeDiversity {
		points = mmrSelect(queryVector, points, query.K, mmrLambda)
	} else if len(points) > query.K {
		points = points[:query.K]
	}

	out := make([]domain.Document, 0, len(points))
	for _, p := range points {
		out = append(out, documentFromPayload(p.Payload))
	}
	return out, nil
}

// Scroll pages through the whole collection; offset is Qdrant's opaque
// continuation token from the previous page.
func (s *Store) Scroll(ctx context.Context, limit int, offset json.RawMessage) (ports.ScrollPage, error) {
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if len(offset) > 0 {
		reqBody["offset"] = offset
	}

	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, "/points/scroll", reqBody, &resp, "scroll"); err != nil {
		return ports.ScrollPage{}, domain.WrapError(domain.ErrStoreUnavailable, "qdrant scroll", err)
	}

	page := ports.ScrollPage{Documents: make([]domain.Document, 0, len(resp.Result.Points))}
	for _, p := range resp.Result.Points {
		page.Documents = append(page.Documents, documentFromPayload(p.Payload))
	}
	if !bytes.Equal(resp.Result.NextPageOffset, []byte("null")) {
		page.NextOffset = resp.Result.NextPageOffset
	}
	return page, nil
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector"`
}

func partitionFilter(market, docDomain string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "country", "match": map[string]any{"value": market}},
			{"key": "domain", "match": map[string]any{"value": docDomain}},
		},
	}
}

func documentFromPayload(payload map[string]any) domain.Document {
	return domain.Document{
		Content: getStringPayload(payload, "text"),
		Metadata: domain.Metadata{
			Country: getStringPayload(payload, "country"),
			Domain:  getStringPayload(payload, "domain"),
			Source:  getStringPayload(payload, "source"),
			Title:   getStringPayload(payload, "title"),
			Page:    getIntPayload(payload, "page"),
		},
	}
}

func (s *Store) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s%s", s.baseURL, s.collection, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
