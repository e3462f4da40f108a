package domain

import "strings"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel normalizes a model-emitted risk value. The second return is
// false for anything outside the LOW/MEDIUM/HIGH vocabulary.
func ParseRiskLevel(raw string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	default:
		return "", false
	}
}

// Finding is one flagged span of label text.
type Finding struct {
	Snippet          string    `json:"snippet"`
	Risk             RiskLevel `json:"risk"`
	Reason           string    `json:"reason"`
	SuggestedRewrite string    `json:"suggested_rewrite,omitempty"`
}

// Detail is one per-ingredient assessment line.
type Detail struct {
	Ingredient string    `json:"ingredient"`
	Regulation string    `json:"regulation"`
	Content    string    `json:"content"`
	Action     string    `json:"action"`
	Severity   RiskLevel `json:"severity"`
}

// LabelingResult is the structured outcome of a labeling-domain check.
type LabelingResult struct {
	OverallRisk   RiskLevel `json:"overall_risk"`
	Findings      []Finding `json:"findings"`
	Notes         []string  `json:"notes"`
	FormattedText string    `json:"formatted_text,omitempty"`
}

// IngredientResult is the structured outcome of an ingredients-domain check.
type IngredientResult struct {
	OverallRisk RiskLevel `json:"overall_risk"`
	Details     []Detail  `json:"details"`
	Notes       []string  `json:"notes"`
}

// AliasRecord is the cached synonym set for one ingredient name. Persisted
// JSON-encoded in the alias cache under multiple canonicalized keys.
type AliasRecord struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
	CASNumber string   `json:"cas,omitempty"`
}

// ReflectionVerdict is the transient self-critique outcome gating one
// regeneration. Never persisted.
type ReflectionVerdict struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}
