package domain

import "time"

// CheckRecord is the audit row written for every completed compliance check.
type CheckRecord struct {
	ID           string    `json:"id"`
	Market       string    `json:"market"`
	Domain       string    `json:"domain"`
	OverallRisk  RiskLevel `json:"overall_risk"`
	FindingCount int       `json:"finding_count"`
	CreatedAt    time.Time `json:"created_at"`
}
