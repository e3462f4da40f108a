package usecase

import (
	"context"
	"fmt"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

// RetrievalService assembles a hybrid retriever bound to one
// (market, domain) partition.
type RetrievalService struct {
	store        ports.DocumentStore
	lexical      ports.LexicalRetrieverSource
	bm25Weight   float64
	vectorWeight float64
}

func NewRetrievalService(
	store ports.DocumentStore,
	lexical ports.LexicalRetrieverSource,
	bm25Weight, vectorWeight float64,
) *RetrievalService {
	return &RetrievalService{
		store:        store,
		lexical:      lexical,
		bm25Weight:   bm25Weight,
		vectorWeight: vectorWeight,
	}
}

// Retriever returns a hybrid retriever for the partition using the service
// defaults for channel weights.
func (s *RetrievalService) Retriever(ctx context.Context, market, docDomain string, fetchK int, mode ports.SearchMode) (ports.Retriever, error) {
	return s.WeightedRetriever(ctx, market, docDomain, fetchK, mode, s.bm25Weight, s.vectorWeight)
}

// WeightedRetriever is Retriever with explicit channel weights; the
// restricted-substance lookup skews lexical because it matches exact
// substance names.
func (s *RetrievalService) WeightedRetriever(
	ctx context.Context,
	market, docDomain string,
	fetchK int,
	mode ports.SearchMode,
	bm25Weight, vectorWeight float64,
) (ports.Retriever, error) {
	lexical, err := s.lexical.Retriever(ctx, market, docDomain)
	if err != nil {
		return nil, fmt.Errorf("lexical retriever for %s/%s: %w", market, docDomain, err)
	}

	semantic := &semanticRetriever{
		store:  s.store,
		market: market,
		domain: docDomain,
		fetchK: fetchK,
		mode:   mode,
	}

	return NewHybridRetriever(lexical, semantic, bm25Weight, vectorWeight), nil
}

// semanticRetriever adapts the document store's filtered similarity search
// to the shared Retriever capability.
type semanticRetriever struct {
	store  ports.DocumentStore
	market string
	domain string
	fetchK int
	mode   ports.SearchMode
}

func (r *semanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error) {
	fetchK := r.fetchK
	if fetchK < k {
		fetchK = k
	}
	return r.store.Search(ctx, ports.SearchQuery{
		Text:   query,
		Market: r.market,
		Domain: r.domain,
		K:      k,
		FetchK: fetchK,
		Mode:   r.mode,
	})
}
