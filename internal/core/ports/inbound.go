package ports

import (
	"context"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

// ComplianceChecker is the inbound contract for label and ingredient checks.
type ComplianceChecker interface {
	CheckLabeling(ctx context.Context, market, text string) (*domain.LabelingResult, error)
	CheckIngredients(ctx context.Context, market, text string) (*domain.IngredientResult, error)
}
