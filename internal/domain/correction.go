package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PatternStatusCandidate = "candidate"
	PatternStatusSuggested = "suggested"
)

// CorrectionSample is one human override of an extracted field value.
// Immutable once recorded.
type CorrectionSample struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PatternID uuid.UUID `gorm:"type:uuid;column:pattern_id;not null;index" json:"pattern_id"`

	SourceEntityID uuid.UUID `gorm:"type:uuid;column:source_entity_id;not null;index:idx_correction_sample_key" json:"source_entity_id"`
	FieldName      string    `gorm:"column:field_name;not null;index:idx_correction_sample_key" json:"field_name"`
	DocumentID     uuid.UUID `gorm:"type:uuid;column:document_id;not null;index" json:"document_id"`

	// OriginalValue is nil when extraction produced nothing for the field.
	OriginalValue  *string `gorm:"column:original_value" json:"original_value,omitempty"`
	CorrectedValue string  `gorm:"column:corrected_value;not null" json:"corrected_value"`

	CorrectedAt time.Time `gorm:"column:corrected_at;not null;index" json:"corrected_at"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (CorrectionSample) TableName() string { return "correction_sample" }

// Ids are generated application-side so both database drivers behave the same.
func (s *CorrectionSample) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CorrectionPattern aggregates repeated corrections for one
// (source_entity_id, field_name) key. The status CAS on this row is what makes
// the threshold crossing edge-triggered across concurrent writers.
type CorrectionPattern struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceEntityID uuid.UUID `gorm:"type:uuid;column:source_entity_id;not null;index:idx_correction_pattern_key,unique,priority:1" json:"source_entity_id"`
	FieldName      string    `gorm:"column:field_name;not null;index:idx_correction_pattern_key,unique,priority:2" json:"field_name"`

	OccurrenceCount int    `gorm:"column:occurrence_count;not null;default:0" json:"occurrence_count"`
	Status          string `gorm:"column:status;not null;default:'candidate';index" json:"status"`

	// LastInferenceFailed marks a pattern whose last inference attempt fell
	// below the confidence floor; the re-attempt worker picks these up.
	LastInferenceFailed bool       `gorm:"column:last_inference_failed;not null;default:false;index" json:"last_inference_failed"`
	LastInferenceAt     *time.Time `gorm:"column:last_inference_at" json:"last_inference_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CorrectionPattern) TableName() string { return "correction_pattern" }

func (p *CorrectionPattern) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PatternState is what CorrectionService.Record reports back to the ingest
// caller after a sample is recorded.
type PatternState struct {
	PatternID        uuid.UUID  `json:"pattern_id"`
	OccurrenceCount  int        `json:"occurrence_count"`
	Status           string     `json:"status"`
	ThresholdCrossed bool       `json:"threshold_crossed"`
	SuggestionID     *uuid.UUID `json:"suggestion_id,omitempty"`
}
