package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractionRecord mirrors one historical extraction outcome from the document
// corpus: the raw text a rule runs against and, when a human has verified the
// field, the known-correct value. The ingestion side of this table belongs to
// the extraction engine; this system only reads it for simulation sampling.
type ExtractionRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DocumentID     uuid.UUID `gorm:"type:uuid;column:document_id;not null;index:idx_extraction_record_key,unique,priority:3" json:"document_id"`
	SourceEntityID uuid.UUID `gorm:"type:uuid;column:source_entity_id;not null;index:idx_extraction_record_key,unique,priority:1" json:"source_entity_id"`
	FieldName      string    `gorm:"column:field_name;not null;index:idx_extraction_record_key,unique,priority:2" json:"field_name"`

	RawText string `gorm:"column:raw_text;type:text" json:"raw_text,omitempty"`

	// ExtractedValue is what the engine originally produced; nil when nothing
	// was extracted.
	ExtractedValue *string `gorm:"column:extracted_value" json:"extracted_value,omitempty"`

	// VerifiedValue is the human-confirmed correct value when one exists.
	VerifiedValue      *string `gorm:"column:verified_value" json:"verified_value,omitempty"`
	VerifiedConfidence float64 `gorm:"column:verified_confidence;not null;default:0" json:"verified_confidence"`

	DocumentDate time.Time `gorm:"column:document_date;not null;index" json:"document_date"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (ExtractionRecord) TableName() string { return "extraction_record" }

func (r *ExtractionRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
