package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

type fakeDocStore struct {
	byDomain map[string][]domain.Document
	queries  []ports.SearchQuery
}

func (s *fakeDocStore) Search(_ context.Context, query ports.SearchQuery) ([]domain.Document, error) {
	s.queries = append(s.queries, query)
	docs := s.byDomain[query.Domain]
	if len(docs) > query.K {
		return docs[:query.K], nil
	}
	return docs, nil
}

func (s *fakeDocStore) Scroll(_ context.Context, _ int, _ json.RawMessage) (ports.ScrollPage, error) {
	return ports.ScrollPage{}, nil
}

type fakeLexicalSource struct {
	byDomain map[string]*stubRetriever
}

func (f *fakeLexicalSource) Retriever(_ context.Context, _, docDomain string) (ports.Retriever, error) {
	if r, ok := f.byDomain[docDomain]; ok {
		return r, nil
	}
	return &stubRetriever{}, nil
}

func restrictedRecord(content string) domain.Document {
	return domain.Document{
		Content: content,
		Metadata: domain.Metadata{
			Country: "EU",
			Domain:  domain.DomainRestrictedIngredients,
			Source:  "restricted-list.xlsx",
			Title:   "Restricted substances",
		},
	}
}

func newTestResolver(store *fakeDocStore, lexical *fakeLexicalSource) *IngredientResolver {
	retrieval := NewRetrievalService(store, lexical, 0.45, 0.55)
	expander := NewQueryExpander(newMemoryAliasCache(), &scriptedChatModel{}, "gpt-4o-mini", testLogger())
	return NewIngredientResolver(retrieval, expander, testLogger())
}

func TestResolveTargetsFlaggedSubstanceNames(t *testing.T) {
	record := restrictedRecord("표준명: 헥사클로로펜\n영문명: Hexachlorophene\n배합한도: 사용금지")
	store := &fakeDocStore{byDomain: map[string][]domain.Document{
		domain.DomainRestrictedIngredients: {record},
		domain.DomainIngredients:           makeDocs("reg", 8),
	}}
	lexical := &fakeLexicalSource{byDomain: map[string]*stubRetriever{
		domain.DomainRestrictedIngredients: {docs: []domain.Document{record}},
	}}

	evidence, err := newTestResolver(store, lexical).Resolve(context.Background(), "EU", "Hexachlorophene")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(evidence.Flagged) != 2 {
		t.Fatalf("expected 2 flagged names, got %v", evidence.Flagged)
	}
	if evidence.Flagged[0] != "헥사클로로펜" || evidence.Flagged[1] != "Hexachlorophene" {
		t.Fatalf("unexpected flagged names: %v", evidence.Flagged)
	}
	if len(evidence.Restricted) == 0 {
		t.Fatalf("expected restricted evidence")
	}

	var targeted *ports.SearchQuery
	for i := range store.queries {
		q := store.queries[i]
		if q.Domain == domain.DomainIngredients && strings.HasPrefix(q.Text, "EU cosmetic regulation: ") {
			targeted = &store.queries[i]
			break
		}
	}
	if targeted == nil {
		t.Fatalf("no targeted regulatory query issued, queries: %+v", store.queries)
	}
	if !strings.Contains(targeted.Text, "Hexachlorophene") || !strings.Contains(targeted.Text, "헥사클로로펜") {
		t.Fatalf("targeted query misses flagged names: %q", targeted.Text)
	}
	if targeted.Mode != ports.SearchModeDiversity {
		t.Fatalf("targeted search must use diversity mode, got %q", targeted.Mode)
	}
}

func TestResolveFallsBackToBroadSearchWhenNothingFlagged(t *testing.T) {
	store := &fakeDocStore{byDomain: map[string][]domain.Document{
		domain.DomainIngredients: makeDocs("reg", 8),
	}}
	lexical := &fakeLexicalSource{byDomain: map[string]*stubRetriever{}}

	evidence, err := newTestResolver(store, lexical).Resolve(context.Background(), "EU", "Glycerin")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(evidence.Flagged) != 0 {
		t.Fatalf("expected no flagged names, got %v", evidence.Flagged)
	}
	if len(evidence.Regulatory) == 0 {
		t.Fatalf("fallback must still produce regulatory evidence")
	}

	found := false
	for _, q := range store.queries {
		if q.Domain == domain.DomainIngredients && strings.HasPrefix(q.Text, "EU cosmetic ingredient regulation") {
			found = true
			if !strings.Contains(q.Text, "Glycerin") {
				t.Fatalf("broad query misses the expanded ingredient term: %q", q.Text)
			}
		}
	}
	if !found {
		t.Fatalf("no broad fallback query issued, queries: %+v", store.queries)
	}
}

func TestResolveMergesFallbackWithoutDuplicates(t *testing.T) {
	record := restrictedRecord("영문명: Triclosan\n비고: 보존제 한도 초과 금지")
	// Only two regulatory docs, below the minimum, so the fallback fires and
	// re-returns the same two docs.
	store := &fakeDocStore{byDomain: map[string][]domain.Document{
		domain.DomainRestrictedIngredients: {record},
		domain.DomainIngredients:           makeDocs("reg", 2),
	}}
	lexical := &fakeLexicalSource{byDomain: map[string]*stubRetriever{
		domain.DomainRestrictedIngredients: {docs: []domain.Document{record}},
	}}

	evidence, err := newTestResolver(store, lexical).Resolve(context.Background(), "EU", "Triclosan")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(evidence.Regulatory) != 2 {
		t.Fatalf("expected 2 deduplicated regulatory docs, got %d", len(evidence.Regulatory))
	}
}

func TestExtractFlaggedNamesDeduplicates(t *testing.T) {
	docs := []domain.Document{
		restrictedRecord("영문명: Triclosan"),
		restrictedRecord("English name: triclosan"),
		restrictedRecord("표준명: 트리클로산"),
	}
	names := extractFlaggedNames(docs)
	if len(names) != 2 {
		t.Fatalf("expected canonical dedup to 2 names, got %v", names)
	}
}
