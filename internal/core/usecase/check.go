package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const (
	labelingSearchK      = 6
	labelingFetchK       = 20
	labelingContextChars = 8000
	restrictedCtxChars   = 3000
	regulatoryCtxChars   = 6000
)

// ComplianceUseCase wires retrieval, expansion, resolution and generation
// into the two public check operations.
type ComplianceUseCase struct {
	retrieval *RetrievalService
	expander  *QueryExpander
	resolver  *IngredientResolver
	generator *ReflectiveGenerator
	queue     ports.MessageQueue
	logger    *slog.Logger
}

func NewComplianceUseCase(
	retrieval *RetrievalService,
	expander *QueryExpander,
	resolver *IngredientResolver,
	generator *ReflectiveGenerator,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *ComplianceUseCase {
	return &ComplianceUseCase{
		retrieval: retrieval,
		expander:  expander,
		resolver:  resolver,
		generator: generator,
		queue:     queue,
		logger:    logger,
	}
}

func (uc *ComplianceUseCase) CheckLabeling(ctx context.Context, market, text string) (*domain.LabelingResult, error) {
	market, normalized, err := normalizeInput(market, text)
	if err != nil {
		return nil, err
	}

	retriever, err := uc.retrieval.Retriever(ctx, market, domain.DomainLabeling, labelingFetchK, ports.SearchModeDiversity)
	if err != nil {
		return nil, err
	}

	query := uc.expander.ExpandLabelingQuery(ctx, normalized)
	docs, err := retriever.Retrieve(ctx, query, labelingSearchK)
	if err != nil {
		return nil, fmt.Errorf("labeling retrieval: %w", err)
	}

	contextBlock := FormatContext(docs, labelingContextChars)
	result, err := uc.generator.GenerateLabeling(ctx, market, contextBlock, normalized)
	if err != nil {
		return nil, err
	}

	uc.publishCheck(ctx, market, domain.DomainLabeling, result.OverallRisk, len(result.Findings))
	return result, nil
}

func (uc *ComplianceUseCase) CheckIngredients(ctx context.Context, market, text string) (*domain.IngredientResult, error) {
	market, normalized, err := normalizeInput(market, text)
	if err != nil {
		return nil, err
	}

	evidence, err := uc.resolver.Resolve(ctx, market, normalized)
	if err != nil {
		return nil, err
	}

	restrictedCtx := FormatContext(evidence.Restricted, restrictedCtxChars)
	regulatoryCtx := FormatContext(evidence.Regulatory, regulatoryCtxChars)

	result, err := uc.generator.GenerateIngredients(ctx, market, restrictedCtx, regulatoryCtx, normalized)
	if err != nil {
		return nil, err
	}

	uc.publishCheck(ctx, market, domain.DomainIngredients, result.OverallRisk, len(result.Details))
	return result, nil
}

// publishCheck emits the audit event. Publishing is best effort: a queue
// outage must not fail a completed check.
func (uc *ComplianceUseCase) publishCheck(ctx context.Context, market, checkDomain string, risk domain.RiskLevel, items int) {
	if uc.queue == nil {
		return
	}
	record := domain.CheckRecord{
		ID:           uuid.NewString(),
		Market:       market,
		Domain:       checkDomain,
		OverallRisk:  risk,
		FindingCount: items,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.queue.PublishCheckCompleted(ctx, record); err != nil {
		uc.logger.Warn("check_event_publish_failed", "market", market, "domain", checkDomain, "error", err)
	}
}

// normalizeInput trims the market code and collapses the text to trimmed
// non-empty lines. Empty input is rejected with a typed error even though
// the HTTP layer validates first.
func normalizeInput(market, text string) (string, string, error) {
	market = strings.ToUpper(strings.TrimSpace(market))
	if market == "" {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "check", fmt.Errorf("market is required"))
	}

	lines := make([]string, 0, 16)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "check", fmt.Errorf("text is required"))
	}
	return market, strings.Join(lines, "\n"), nil
}
