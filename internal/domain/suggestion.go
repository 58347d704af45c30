package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SuggestionStatusPending  = "pending"
	SuggestionStatusApproved = "approved"
	SuggestionStatusRejected = "rejected"
)

const (
	SuggestionSourceManual       = "manual"
	SuggestionSourceAutoLearning = "auto_learning"
	SuggestionSourceImport       = "import"
)

// Closed rejection taxonomy. Reject calls with any other reason are refused.
const (
	RejectReasonInsufficientData = "insufficient_data"
	RejectReasonPoorAccuracy     = "poor_accuracy"
	RejectReasonHighRisk         = "high_risk"
	RejectReasonDuplicate        = "duplicate"
	RejectReasonNotApplicable    = "not_applicable"
	RejectReasonOther            = "other"
)

func ValidRejectReason(reason string) bool {
	switch reason {
	case RejectReasonInsufficientData, RejectReasonPoorAccuracy, RejectReasonHighRisk,
		RejectReasonDuplicate, RejectReasonNotApplicable, RejectReasonOther:
		return true
	default:
		return false
	}
}

// RuleSuggestion is one proposed rule change. Created by the inference engine,
// mutated only by the lifecycle manager, never deleted.
type RuleSuggestion struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PatternID *uuid.UUID `gorm:"type:uuid;column:pattern_id;index" json:"pattern_id,omitempty"`

	SourceEntityID uuid.UUID `gorm:"type:uuid;column:source_entity_id;not null;index:idx_rule_suggestion_key" json:"source_entity_id"`
	FieldName      string    `gorm:"column:field_name;not null;index:idx_rule_suggestion_key" json:"field_name"`

	ExtractionType string `gorm:"column:extraction_type;not null" json:"extraction_type"`

	// CurrentPatternPayload is nil when no rule existed for the key yet.
	CurrentPatternPayload   datatypes.JSON `gorm:"column:current_pattern_payload;type:jsonb" json:"current_pattern_payload,omitempty"`
	SuggestedPatternPayload datatypes.JSON `gorm:"column:suggested_pattern_payload;type:jsonb;not null" json:"suggested_pattern_payload"`

	Source          string  `gorm:"column:source;not null;default:'auto_learning';index" json:"source"`
	Confidence      float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`
	CorrectionCount int     `gorm:"column:correction_count;not null;default:0" json:"correction_count"`

	// ExpectedImpact is the simulation snapshot taken at creation time.
	// Re-simulations return fresh artifacts and never touch this column.
	ExpectedImpact datatypes.JSON `gorm:"column:expected_impact;type:jsonb" json:"expected_impact,omitempty"`

	// SampleCases holds the bounded set of correction samples that motivated
	// the suggestion, denormalized for review display.
	SampleCases datatypes.JSON `gorm:"column:sample_cases;type:jsonb" json:"sample_cases,omitempty"`

	Status          string     `gorm:"column:status;not null;default:'pending';index" json:"status"`
	RejectionReason *string    `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	RejectionDetail *string    `gorm:"column:rejection_detail;type:text" json:"rejection_detail,omitempty"`
	ReviewNotes     *string    `gorm:"column:review_notes;type:text" json:"review_notes,omitempty"`
	ReviewedBy      *string    `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RuleSuggestion) TableName() string { return "rule_suggestion" }

func (s *RuleSuggestion) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
