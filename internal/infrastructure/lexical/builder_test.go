package lexical

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

type pagedStore struct {
	pages       []ports.ScrollPage
	scrollCalls int
}

func (s *pagedStore) Search(_ context.Context, _ ports.SearchQuery) ([]domain.Document, error) {
	return nil, nil
}

func (s *pagedStore) Scroll(_ context.Context, _ int, offset json.RawMessage) (ports.ScrollPage, error) {
	idx := s.scrollCalls
	s.scrollCalls++
	if idx >= len(s.pages) {
		return ports.ScrollPage{}, nil
	}
	if idx > 0 && len(offset) == 0 {
		return ports.ScrollPage{}, nil
	}
	return s.pages[idx], nil
}

func partitionDoc(market, docDomain, content string) domain.Document {
	return domain.Document{
		Content: content,
		Metadata: domain.Metadata{
			Country: market,
			Domain:  docDomain,
			Source:  "src.pdf",
		},
	}
}

func TestBuilderScansAllPagesAndFiltersPartition(t *testing.T) {
	store := &pagedStore{pages: []ports.ScrollPage{
		{
			Documents: []domain.Document{
				partitionDoc("EU", domain.DomainIngredients, "retinol limits"),
				partitionDoc("KR", domain.DomainIngredients, "다른 시장 문서"),
			},
			NextOffset: json.RawMessage(`"page-2"`),
		},
		{
			Documents: []domain.Document{
				partitionDoc("EU", domain.DomainIngredients, "niacinamide purity"),
				partitionDoc("EU", domain.DomainLabeling, "labeling rules"),
			},
		},
	}}

	builder := NewBuilder(store, slog.New(slog.DiscardHandler))
	retriever, err := builder.Retriever(context.Background(), "EU", domain.DomainIngredients)
	if err != nil {
		t.Fatalf("Retriever() error = %v", err)
	}
	if store.scrollCalls != 2 {
		t.Fatalf("expected 2 scroll pages, got %d", store.scrollCalls)
	}

	index, ok := retriever.(*BM25Retriever)
	if !ok {
		t.Fatalf("unexpected retriever type %T", retriever)
	}
	if index.Size() != 2 {
		t.Fatalf("expected 2 docs in the EU/ingredients partition, got %d", index.Size())
	}
}

func TestBuilderCachesPerPartition(t *testing.T) {
	store := &pagedStore{pages: []ports.ScrollPage{
		{Documents: []domain.Document{partitionDoc("EU", domain.DomainIngredients, "retinol limits")}},
	}}
	builder := NewBuilder(store, slog.New(slog.DiscardHandler))

	first, err := builder.Retriever(context.Background(), "EU", domain.DomainIngredients)
	if err != nil {
		t.Fatalf("first Retriever() error = %v", err)
	}
	callsAfterFirst := store.scrollCalls

	second, err := builder.Retriever(context.Background(), "EU", domain.DomainIngredients)
	if err != nil {
		t.Fatalf("second Retriever() error = %v", err)
	}
	if store.scrollCalls != callsAfterFirst {
		t.Fatalf("cache hit must not rescan, scroll calls %d -> %d", callsAfterFirst, store.scrollCalls)
	}
	if first != second {
		t.Fatalf("expected the cached retriever instance")
	}

	// A different partition triggers its own scan.
	if _, err := builder.Retriever(context.Background(), "KR", domain.DomainIngredients); err != nil {
		t.Fatalf("third Retriever() error = %v", err)
	}
	if store.scrollCalls == callsAfterFirst {
		t.Fatalf("different partition must rescan")
	}
}
