package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const (
	aliasKeyPrefix       = "ing_alias:"
	defaultAliasTTL      = 180 * 24 * time.Hour
	defaultLLMCallBudget = 2
	maxExpandedTerms     = 30
	maxSynonymLineTerms  = 15
	maxAliasKeysPerTerm  = 6
)

var (
	splitPattern = regexp.MustCompile(`[,\n]+`)
	spacePattern = regexp.MustCompile(`\s+`)
	punctPattern = regexp.MustCompile(`[()\[\]{}.,;:/\\|"'` + "`" + `~!@#$%^&*_+=<>?-]`)
)

// QueryExpander widens lexical recall for ingredient queries: chemical and
// INCI names have trade names, translations and abbreviations that plain
// term matching misses. Aliases come from the external cache, with a bounded
// number of on-demand LLM normalizations per request on cache misses.
type QueryExpander struct {
	cache       ports.AliasCache
	model       ports.ChatModel
	normalizeTo string
	ttl         time.Duration
	llmBudget   int
	logger      *slog.Logger
}

func NewQueryExpander(cache ports.AliasCache, model ports.ChatModel, normalizerModel string, logger *slog.Logger) *QueryExpander {
	return &QueryExpander{
		cache:       cache,
		model:       model,
		normalizeTo: normalizerModel,
		ttl:         defaultAliasTTL,
		llmBudget:   defaultLLMCallBudget,
		logger:      logger,
	}
}

// WithLimits overrides the cache TTL and per-request LLM call budget.
func (e *QueryExpander) WithLimits(ttl time.Duration, llmBudget int) *QueryExpander {
	if ttl > 0 {
		e.ttl = ttl
	}
	if llmBudget >= 0 {
		e.llmBudget = llmBudget
	}
	return e
}

// ExpandIngredientsQuery folds cached alias expansions of every ingredient
// term into the base query. Expansion never fails retrieval: cache and model
// errors degrade to raw-term fallback.
func (e *QueryExpander) ExpandIngredientsQuery(ctx context.Context, baseQuery, ingredientsText string) string {
	terms := make([]string, 0, 32)
	llmCalls := 0

	for _, ingredient := range splitIngredients(ingredientsText) {
		aliases := e.cachedAliases(ctx, ingredient)

		if len(aliases) == 0 && e.model != nil && llmCalls < e.llmBudget {
			aliases = e.generateAndCacheAliases(ctx, ingredient)
			if len(aliases) > 0 {
				llmCalls++
			}
		}

		if len(aliases) > 0 {
			terms = append(terms, aliases...)
		} else {
			terms = append(terms, ingredient, spacePattern.ReplaceAllString(ingredient, ""))
		}
	}

	terms = dedupByCanonical(terms)
	if len(terms) > maxExpandedTerms {
		terms = terms[:maxExpandedTerms]
	}
	if len(terms) == 0 {
		return baseQuery
	}

	synLine := terms
	if len(synLine) > maxSynonymLineTerms {
		synLine = synLine[:maxSynonymLineTerms]
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+term+`"`)
	}

	var b strings.Builder
	b.WriteString(baseQuery)
	b.WriteString("\n\nSynonyms: ")
	b.WriteString(strings.Join(synLine, ", "))
	b.WriteString("\n\n[Synonym Expansion]\n")
	b.WriteString(strings.Join(quoted, " OR "))
	return b.String()
}

// ExpandLabelingQuery is the identity: labeling checks do not hinge on
// substance-name matching.
func (e *QueryExpander) ExpandLabelingQuery(_ context.Context, baseQuery string) string {
	return baseQuery
}

func (e *QueryExpander) cachedAliases(ctx context.Context, ingredient string) []string {
	raw, found, err := e.cache.Get(ctx, aliasKeyPrefix+canonicalKey(ingredient))
	if err != nil {
		e.logger.Warn("alias_cache_get_failed", "ingredient", ingredient, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	var record domain.AliasRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		e.logger.Warn("alias_cache_decode_failed", "ingredient", ingredient, "error", err)
		return nil
	}
	return dedupByCanonical(append([]string{ingredient}, record.Aliases...))
}

func (e *QueryExpander) generateAndCacheAliases(ctx context.Context, ingredient string) []string {
	record, err := e.normalizeIngredient(ctx, ingredient)
	if err != nil {
		e.logger.Warn("ingredient_normalize_failed", "ingredient", ingredient, "error", err)
		return nil
	}

	merged := dedupByCanonical(append([]string{ingredient, record.Canonical}, record.Aliases...))
	record.Aliases = merged

	payload, err := json.Marshal(record)
	if err != nil {
		return merged
	}

	// Store under several canonicalized keys so later lookups by alias hit.
	keys := map[string]struct{}{canonicalKey(ingredient): {}}
	if record.Canonical != "" {
		keys[canonicalKey(record.Canonical)] = struct{}{}
	}
	for i, alias := range merged {
		if i >= maxAliasKeysPerTerm {
			break
		}
		keys[canonicalKey(alias)] = struct{}{}
	}
	for key := range keys {
		if err := e.cache.SetWithTTL(ctx, aliasKeyPrefix+key, string(payload), e.ttl); err != nil {
			e.logger.Warn("alias_cache_set_failed", "key", key, "error", err)
		}
	}

	return merged
}

func (e *QueryExpander) normalizeIngredient(ctx context.Context, ingredient string) (domain.AliasRecord, error) {
	raw, err := e.model.Complete(ctx, ports.ChatRequest{
		Model:       e.normalizeTo,
		System:      "You are a cosmetic ingredient nomenclature expert. Answer with strict JSON only.",
		User:        buildNormalizePrompt(ingredient),
		Temperature: 0,
		MaxTokens:   400,
	})
	if err != nil {
		return domain.AliasRecord{}, err
	}

	var record domain.AliasRecord
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &record); err != nil {
		return domain.AliasRecord{}, err
	}
	record.Canonical = strings.TrimSpace(record.Canonical)
	return record, nil
}

func buildNormalizePrompt(ingredient string) string {
	return `Normalize this cosmetic ingredient name.
Return a JSON object with keys:
canonical (INCI name, string), aliases (array of strings: trade names, translated names, abbreviations), cas (CAS registry number string or null).
No markdown, no extra keys.

Ingredient: ` + ingredient
}

// canonicalKey lowercases and strips whitespace and punctuation so that
// naming variants collapse to one cache key.
func canonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spacePattern.ReplaceAllString(s, "")
	return punctPattern.ReplaceAllString(s, "")
}

func splitIngredients(text string) []string {
	parts := splitPattern.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dedupByCanonical drops empty entries and canonical-form duplicates,
// preserving first-seen order and surface form.
func dedupByCanonical(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := canonicalKey(term)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}
