package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RiskLevelHigh   = "high"
	RiskLevelMedium = "medium"
	RiskLevelLow    = "low"
)

// SampleSpec controls how the simulation engine selects historical documents.
type SampleSpec struct {
	SampleSize        int        `json:"sample_size"`
	DateFrom          *time.Time `json:"date_from,omitempty"`
	DateTo            *time.Time `json:"date_to,omitempty"`
	IncludeUnverified bool       `json:"include_unverified"`
}

// ImpactAnalysisResult is the statistics artifact one simulation run produces.
// Given identical spec and unchanged data, two runs produce identical results.
type ImpactAnalysisResult struct {
	SuggestionID uuid.UUID  `json:"suggestion_id"`
	Spec         SampleSpec `json:"spec"`

	TotalAffected int `json:"total_affected"`
	Improved      int `json:"improved"`
	Regressed     int `json:"regressed"`
	Unchanged     int `json:"unchanged"`

	// ExcludedCount counts documents skipped for missing verified values or
	// per-document evaluation failures, so totals stay auditable.
	ExcludedCount int `json:"excluded_count"`

	RiskCases []RiskCase       `json:"risk_cases"`
	Timeline  []TimelineBucket `json:"timeline"`

	ComputedAt time.Time `json:"computed_at"`
}

// RiskCase is a document the candidate rule would regress.
type RiskCase struct {
	DocumentID     uuid.UUID `json:"document_id"`
	RiskLevel      string    `json:"risk_level"`
	Reason         string    `json:"reason"`
	CurrentValue   string    `json:"current_value"`
	SuggestedValue string    `json:"suggested_value"`
	ExpectedValue  string    `json:"expected_value"`
}

// TimelineBucket aggregates improved/regressed counts by document month for
// trend display.
type TimelineBucket struct {
	Period    string `json:"period"` // YYYY-MM
	Affected  int    `json:"affected"`
	Improved  int    `json:"improved"`
	Regressed int    `json:"regressed"`
}
