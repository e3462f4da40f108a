package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const (
	restrictedSearchK     = 4
	restrictedFetchK      = 12
	targetedSearchK       = 6
	targetedFetchK        = 20
	fallbackSearchK       = 8
	fallbackFetchK        = 24
	minRegulatoryDocs     = 3
	restrictedBM25Weight  = 0.7
	restrictedVectorShare = 0.3
)

// Restricted-substance records label substance names in two fields: the
// Korean standard name and the English name. Extraction pattern-matches both.
var (
	standardNamePattern = regexp.MustCompile(`(?m)표준명\s*[:：]\s*(.+)`)
	englishNamePattern  = regexp.MustCompile(`(?m)(?:영문명|English name)\s*[:：]\s*(.+)`)
)

// IngredientResolver runs the two-stage ingredient retrieval: first a
// lexical-weighted lookup against the restricted-substance partition, then a
// targeted regulatory-text search for any substance names the first stage
// flagged, with a broad expanded fallback when either stage comes up short.
type IngredientResolver struct {
	retrieval *RetrievalService
	expander  *QueryExpander
	logger    *slog.Logger
}

func NewIngredientResolver(retrieval *RetrievalService, expander *QueryExpander, logger *slog.Logger) *IngredientResolver {
	return &IngredientResolver{
		retrieval: retrieval,
		expander:  expander,
		logger:    logger,
	}
}

// IngredientEvidence keeps the two evidence channels separate so the
// generator can distinguish restriction-list hits from regulatory text.
type IngredientEvidence struct {
	Restricted []domain.Document
	Regulatory []domain.Document
	Flagged    []string
}

func (r *IngredientResolver) Resolve(ctx context.Context, market, ingredientsText string) (*IngredientEvidence, error) {
	restricted, err := r.searchRestricted(ctx, market, ingredientsText)
	if err != nil {
		return nil, err
	}

	flagged := extractFlaggedNames(restricted)

	var regulatory []domain.Document
	if len(flagged) > 0 {
		targeted := fmt.Sprintf("%s cosmetic regulation: %s", market, strings.Join(flagged, ", "))
		regulatory, err = r.searchRegulatory(ctx, market, targeted, targetedSearchK, targetedFetchK)
		if err != nil {
			return nil, err
		}
	}

	// Broad fallback: nothing flagged, or the targeted search was too thin.
	if len(restricted) == 0 || len(regulatory) < minRegulatoryDocs {
		broad := r.expander.ExpandIngredientsQuery(ctx, market+" cosmetic ingredient regulation", ingredientsText)
		extra, err := r.searchRegulatory(ctx, market, broad, fallbackSearchK, fallbackFetchK)
		if err != nil {
			return nil, err
		}
		regulatory = mergeByIdentity(regulatory, extra)
		r.logger.Debug("ingredient_fallback_search",
			"market", market,
			"flagged", len(flagged),
			"regulatory_docs", len(regulatory),
		)
	}

	return &IngredientEvidence{
		Restricted: restricted,
		Regulatory: regulatory,
		Flagged:    flagged,
	}, nil
}

func (r *IngredientResolver) searchRestricted(ctx context.Context, market, text string) ([]domain.Document, error) {
	retriever, err := r.retrieval.WeightedRetriever(
		ctx, market, domain.DomainRestrictedIngredients,
		restrictedFetchK, ports.SearchModeNearest,
		restrictedBM25Weight, restrictedVectorShare,
	)
	if err != nil {
		return nil, fmt.Errorf("restricted retriever: %w", err)
	}
	docs, err := retriever.Retrieve(ctx, text, restrictedSearchK)
	if err != nil {
		return nil, fmt.Errorf("restricted search: %w", err)
	}
	return docs, nil
}

func (r *IngredientResolver) searchRegulatory(ctx context.Context, market, query string, k, fetchK int) ([]domain.Document, error) {
	retriever, err := r.retrieval.Retriever(ctx, market, domain.DomainIngredients, fetchK, ports.SearchModeDiversity)
	if err != nil {
		return nil, fmt.Errorf("regulatory retriever: %w", err)
	}
	docs, err := retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("regulatory search: %w", err)
	}
	return docs, nil
}

// extractFlaggedNames pulls substance names out of restricted-substance
// record content, preserving first-seen order.
func extractFlaggedNames(docs []domain.Document) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(docs))
	appendMatches := func(content string, pattern *regexp.Regexp) {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			name := strings.TrimSpace(match[1])
			if name == "" {
				continue
			}
			key := canonicalKey(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
		}
	}
	for _, doc := range docs {
		appendMatches(doc.Content, standardNamePattern)
		appendMatches(doc.Content, englishNamePattern)
	}
	return out
}

func mergeByIdentity(base, extra []domain.Document) []domain.Document {
	seen := make(map[string]struct{}, len(base))
	for _, doc := range base {
		seen[doc.IdentityKey()] = struct{}{}
	}
	for _, doc := range extra {
		key := doc.IdentityKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, doc)
	}
	return base
}
