package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const (
	defaultReflectionThreshold = 7
	fallbackReflectionScore    = 5
	degradedNotePrefixLen      = 200
	generationMaxTokens        = 1800
	reflectionMaxTokens        = 400
)

// ReflectiveGenerator produces the structured risk assessment:
// GENERATE -> REFLECT -> (ACCEPT | REGENERATE once -> ACCEPT).
// Malformed model output degrades locally; only transport/auth errors from
// the model endpoint propagate.
type ReflectiveGenerator struct {
	model        ports.ChatModel
	genModel     string
	reflectModel string
	threshold    int
	logger       *slog.Logger

	service  string
	recorder RegenerationRecorder
}

// RegenerationRecorder counts answers redone after a low review score.
type RegenerationRecorder interface {
	RecordRegeneration(service, domain string)
}

func NewReflectiveGenerator(model ports.ChatModel, genModel, reflectModel string, logger *slog.Logger) *ReflectiveGenerator {
	if reflectModel == "" {
		reflectModel = genModel
	}
	return &ReflectiveGenerator{
		model:        model,
		genModel:     genModel,
		reflectModel: reflectModel,
		threshold:    defaultReflectionThreshold,
		logger:       logger,
	}
}

// WithThreshold overrides the reflection score below which one regeneration
// is issued.
func (g *ReflectiveGenerator) WithThreshold(threshold int) *ReflectiveGenerator {
	if threshold > 0 {
		g.threshold = threshold
	}
	return g
}

// WithMetrics enables regeneration accounting. Safe to skip in tests.
func (g *ReflectiveGenerator) WithMetrics(service string, recorder RegenerationRecorder) *ReflectiveGenerator {
	g.service = service
	g.recorder = recorder
	return g
}

func (g *ReflectiveGenerator) GenerateLabeling(ctx context.Context, market, contextBlock, labelText string) (*domain.LabelingResult, error) {
	prompt := buildLabelingPrompt(market, contextBlock, labelText)

	raw, err := g.complete(ctx, g.genModel, labelingSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result, ok := parseLabelingResult(raw)
	if !ok {
		// Terminal: degraded result, no retry on parse failure.
		return degradedLabelingResult(raw), nil
	}

	verdict, err := g.reflect(ctx, prompt, contextBlock, raw)
	if err != nil {
		return nil, err
	}
	if verdict.Score >= g.threshold {
		return result, nil
	}

	g.logger.Info("regenerating_after_reflection", "domain", domain.DomainLabeling, "score", verdict.Score)
	g.recordRegeneration(domain.DomainLabeling)
	regenRaw, err := g.complete(ctx, g.genModel, labelingSystemPrompt, buildRegeneratePrompt(prompt, verdict))
	if err != nil {
		return nil, err
	}
	if regenerated, ok := parseLabelingResult(regenRaw); ok {
		return regenerated, nil
	}
	// The first answer parsed; keep it rather than degrade on a failed redo.
	return result, nil
}

func (g *ReflectiveGenerator) GenerateIngredients(ctx context.Context, market, restrictedCtx, regulatoryCtx, ingredientsText string) (*domain.IngredientResult, error) {
	prompt := buildIngredientsPrompt(market, restrictedCtx, regulatoryCtx, ingredientsText)

	raw, err := g.complete(ctx, g.genModel, ingredientsSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result, ok := parseIngredientResult(raw)
	if !ok {
		return degradedIngredientResult(raw), nil
	}

	fullContext := restrictedCtx + contextSeparator + regulatoryCtx
	verdict, err := g.reflect(ctx, prompt, fullContext, raw)
	if err != nil {
		return nil, err
	}
	if verdict.Score >= g.threshold {
		return result, nil
	}

	g.logger.Info("regenerating_after_reflection", "domain", domain.DomainIngredients, "score", verdict.Score)
	g.recordRegeneration(domain.DomainIngredients)
	regenRaw, err := g.complete(ctx, g.genModel, ingredientsSystemPrompt, buildRegeneratePrompt(prompt, verdict))
	if err != nil {
		return nil, err
	}
	if regenerated, ok := parseIngredientResult(regenRaw); ok {
		return regenerated, nil
	}
	return result, nil
}

func (g *ReflectiveGenerator) complete(ctx context.Context, model, system, user string) (string, error) {
	raw, err := g.model.Complete(ctx, ports.ChatRequest{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: 0,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	return raw, nil
}

// reflect scores the raw answer against the rubric. A reflection that cannot
// be parsed counts as below-threshold so one regeneration is attempted; a
// failed call is an endpoint problem and propagates like any model error.
func (g *ReflectiveGenerator) reflect(ctx context.Context, prompt, contextBlock, answer string) (domain.ReflectionVerdict, error) {
	raw, err := g.model.Complete(ctx, ports.ChatRequest{
		Model:       g.reflectModel,
		System:      reflectionSystemPrompt,
		User:        buildReflectionPrompt(prompt, contextBlock, answer),
		Temperature: 0,
		MaxTokens:   reflectionMaxTokens,
	})
	if err != nil {
		return domain.ReflectionVerdict{}, fmt.Errorf("reflection call: %w", err)
	}

	var verdict domain.ReflectionVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(stripCodeFences(raw))), &verdict); err != nil || verdict.Score < 1 || verdict.Score > 10 {
		return domain.ReflectionVerdict{Score: fallbackReflectionScore, Feedback: "reflection output could not be parsed"}, nil
	}
	return verdict, nil
}

func (g *ReflectiveGenerator) recordRegeneration(checkDomain string) {
	if g.recorder != nil {
		g.recorder.RecordRegeneration(g.service, checkDomain)
	}
}

// --- parsing ---

type rawLabelingResult struct {
	OverallRisk string `json:"overall_risk"`
	Findings    []struct {
		Snippet          string `json:"snippet"`
		Risk             string `json:"risk"`
		Reason           string `json:"reason"`
		SuggestedRewrite string `json:"suggested_rewrite"`
	} `json:"findings"`
	Notes         []string `json:"notes"`
	FormattedText string   `json:"formatted_text"`
}

func parseLabelingResult(raw string) (*domain.LabelingResult, bool) {
	var parsed rawLabelingResult
	if err := json.Unmarshal([]byte(extractJSONObject(stripCodeFences(raw))), &parsed); err != nil {
		return nil, false
	}
	overall, ok := domain.ParseRiskLevel(parsed.OverallRisk)
	if !ok {
		return nil, false
	}

	findings := make([]domain.Finding, 0, len(parsed.Findings))
	for _, f := range parsed.Findings {
		risk, ok := domain.ParseRiskLevel(f.Risk)
		if !ok {
			return nil, false
		}
		findings = append(findings, domain.Finding{
			Snippet:          f.Snippet,
			Risk:             risk,
			Reason:           f.Reason,
			SuggestedRewrite: f.SuggestedRewrite,
		})
	}

	return &domain.LabelingResult{
		OverallRisk:   overall,
		Findings:      findings,
		Notes:         notesOrEmpty(parsed.Notes),
		FormattedText: parsed.FormattedText,
	}, true
}

type rawIngredientResult struct {
	OverallRisk string `json:"overall_risk"`
	Details     []struct {
		Ingredient string `json:"ingredient"`
		Regulation string `json:"regulation"`
		Content    string `json:"content"`
		Action     string `json:"action"`
		Severity   string `json:"severity"`
	} `json:"details"`
	Notes []string `json:"notes"`
}

func parseIngredientResult(raw string) (*domain.IngredientResult, bool) {
	var parsed rawIngredientResult
	if err := json.Unmarshal([]byte(extractJSONObject(stripCodeFences(raw))), &parsed); err != nil {
		return nil, false
	}
	overall, ok := domain.ParseRiskLevel(parsed.OverallRisk)
	if !ok {
		return nil, false
	}

	details := make([]domain.Detail, 0, len(parsed.Details))
	for _, d := range parsed.Details {
		severity, ok := domain.ParseRiskLevel(d.Severity)
		if !ok {
			return nil, false
		}
		details = append(details, domain.Detail{
			Ingredient: d.Ingredient,
			Regulation: d.Regulation,
			Content:    d.Content,
			Action:     d.Action,
			Severity:   severity,
		})
	}

	return &domain.IngredientResult{
		OverallRisk: overall,
		Details:     details,
		Notes:       notesOrEmpty(parsed.Notes),
	}, true
}

func degradedLabelingResult(raw string) *domain.LabelingResult {
	return &domain.LabelingResult{
		OverallRisk: domain.RiskMedium,
		Findings:    []domain.Finding{},
		Notes:       []string{degradedNote(raw)},
	}
}

func degradedIngredientResult(raw string) *domain.IngredientResult {
	return &domain.IngredientResult{
		OverallRisk: domain.RiskMedium,
		Details:     []domain.Detail{},
		Notes:       []string{degradedNote(raw)},
	}
}

func degradedNote(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > degradedNotePrefixLen {
		// Cut on a rune boundary; the raw output may be multi-byte text.
		cut := degradedNotePrefixLen
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	return "model output could not be parsed as a structured result; raw output: " + raw
}

func notesOrEmpty(notes []string) []string {
	if notes == nil {
		return []string{}
	}
	return notes
}

// stripCodeFences removes a wrapping markdown code fence, with or without a
// language tag.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && len(strings.Fields(trimmed[:idx])) <= 1 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
