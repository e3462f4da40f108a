package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

// HybridRetriever merges a lexical and a semantic channel under weighted
// result quotas. Weights are independent scaling factors on k, not
// normalized shares.
type HybridRetriever struct {
	lexical      ports.Retriever
	semantic     ports.Retriever
	bm25Weight   float64
	vectorWeight float64
}

func NewHybridRetriever(lexical, semantic ports.Retriever, bm25Weight, vectorWeight float64) *HybridRetriever {
	if bm25Weight <= 0 {
		bm25Weight = 0.45
	}
	if vectorWeight <= 0 {
		vectorWeight = 0.55
	}
	return &HybridRetriever{
		lexical:      lexical,
		semantic:     semantic,
		bm25Weight:   bm25Weight,
		vectorWeight: vectorWeight,
	}
}

// Retrieve returns at most k documents: the top round(k*bm25Weight) lexical
// and round(k*vectorWeight) semantic results (each quota floored at 1),
// merged lexical-first, deduplicated by identity key, backfilled from the
// unweighted semantic channel when short.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error) {
	if k <= 0 {
		k = 6
	}

	lexQuota := quota(k, h.bm25Weight)
	vecQuota := quota(k, h.vectorWeight)

	lexDocs, err := h.lexical.Retrieve(ctx, query, lexQuota)
	if err != nil {
		return nil, fmt.Errorf("lexical retrieve: %w", err)
	}
	vecDocs, err := h.semantic.Retrieve(ctx, query, vecQuota)
	if err != nil {
		return nil, fmt.Errorf("semantic retrieve: %w", err)
	}

	seen := make(map[string]struct{}, lexQuota+vecQuota)
	merged := make([]domain.Document, 0, k)
	for _, doc := range append(trim(lexDocs, lexQuota), trim(vecDocs, vecQuota)...) {
		key := doc.IdentityKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, doc)
	}

	// Backfill from the semantic channel, unweighted, until k or exhaustion.
	if len(merged) < k {
		extra, err := h.semantic.Retrieve(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("semantic backfill: %w", err)
		}
		for _, doc := range extra {
			if len(merged) >= k {
				break
			}
			key := doc.IdentityKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, doc)
		}
	}

	return trim(merged, k), nil
}

func quota(k int, weight float64) int {
	n := int(math.Round(float64(k) * weight))
	if n < 1 {
		return 1
	}
	return n
}

func trim(docs []domain.Document, limit int) []domain.Document {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}
