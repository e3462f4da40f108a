package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

type fixedEmbedder struct {
	vector []float32
	err    error
}

func (e *fixedEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return e.vector, e.err
}

func pointJSON(score float64, source string, vector []float32) map[string]any {
	return map[string]any{
		"score": score,
		"payload": map[string]any{
			"text":    "content from " + source,
			"country": "EU",
			"domain":  "ingredients",
			"source":  source,
			"title":   source,
			"page":    float64(3),
		},
		"vector": vector,
	}
}

func TestSearchSendsPartitionFilterAndTrimsToK(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/regulations/points/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					pointJSON(0.9, "a.pdf", nil),
					pointJSON(0.8, "b.pdf", nil),
					pointJSON(0.7, "c.pdf", nil),
				},
			},
		})
	}))
	defer server.Close()

	store := New(server.URL, "regulations", &fixedEmbedder{vector: []float32{0.1, 0.2}})
	docs, err := store.Search(context.Background(), ports.SearchQuery{
		Text:   "retinol limits",
		Market: "EU",
		Domain: "ingredients",
		K:      2,
		Mode:   ports.SearchModeNearest,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected trim to k=2, got %d", len(docs))
	}
	if docs[0].Metadata.Source != "a.pdf" || docs[0].Metadata.Page != 3 {
		t.Fatalf("unexpected first doc: %+v", docs[0])
	}

	if captured["with_vector"] != false {
		t.Fatalf("nearest mode must not fetch vectors: %v", captured["with_vector"])
	}
	if captured["limit"] != float64(2) {
		t.Fatalf("nearest mode limit = %v, want 2", captured["limit"])
	}
	filter, _ := json.Marshal(captured["filter"])
	for _, want := range []string{`"country"`, `"EU"`, `"domain"`, `"ingredients"`} {
		if !strings.Contains(string(filter), want) {
			t.Fatalf("filter misses %s: %s", want, filter)
		}
	}
}

func TestSearchDiversityModeOverfetchesAndSubselects(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					pointJSON(0.95, "a.pdf", []float32{0.8, 0.6}),
					pointJSON(0.94, "a-near.pdf", []float32{0.8, 0.6}),
					pointJSON(0.70, "other.pdf", []float32{0.6, -0.8}),
				},
			},
		})
	}))
	defer server.Close()

	store := New(server.URL, "regulations", &fixedEmbedder{vector: []float32{1, 0}})
	docs, err := store.Search(context.Background(), ports.SearchQuery{
		Text:   "q",
		Market: "EU",
		Domain: "ingredients",
		K:      2,
		FetchK: 20,
		Mode:   ports.SearchModeDiversity,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if captured["limit"] != float64(20) {
		t.Fatalf("diversity mode must fetch FetchK candidates, limit = %v", captured["limit"])
	}
	if captured["with_vector"] != true {
		t.Fatalf("diversity mode needs vectors back")
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	// The near-duplicate loses to the distinct candidate.
	if docs[0].Metadata.Source != "a.pdf" || docs[1].Metadata.Source != "other.pdf" {
		t.Fatalf("unexpected diversity selection: %s, %s", docs[0].Metadata.Source, docs[1].Metadata.Source)
	}
}

func TestSearchWrapsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := New(server.URL, "regulations", &fixedEmbedder{vector: []float32{1}})
	_, err := store.Search(context.Background(), ports.SearchQuery{Text: "q", Market: "EU", Domain: "ingredients", K: 2})
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestScrollPassesOffsetAndDetectsExhaustion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/regulations/points/scroll" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls++
		if calls == 1 {
			if _, ok := req["offset"]; ok {
				t.Errorf("first page must not carry an offset")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points":           []map[string]any{pointJSON(0, "a.pdf", nil)},
					"next_page_offset": "tok-2",
				},
			})
			return
		}
		if req["offset"] != "tok-2" {
			t.Errorf("second page offset = %v, want tok-2", req["offset"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points":           []map[string]any{pointJSON(0, "b.pdf", nil)},
				"next_page_offset": nil,
			},
		})
	}))
	defer server.Close()

	store := New(server.URL, "regulations", &fixedEmbedder{})
	first, err := store.Scroll(context.Background(), 500, nil)
	if err != nil {
		t.Fatalf("first Scroll() error = %v", err)
	}
	if len(first.NextOffset) == 0 {
		t.Fatalf("expected continuation token, got none")
	}

	second, err := store.Scroll(context.Background(), 500, first.NextOffset)
	if err != nil {
		t.Fatalf("second Scroll() error = %v", err)
	}
	if len(second.NextOffset) != 0 {
		t.Fatalf("expected exhaustion, got offset %s", second.NextOffset)
	}
	if len(first.Documents) != 1 || len(second.Documents) != 1 {
		t.Fatalf("unexpected page sizes: %d, %d", len(first.Documents), len(second.Documents))
	}
}
