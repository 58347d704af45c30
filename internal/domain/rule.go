package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RuleStatusActive     = "active"
	RuleStatusDeprecated = "deprecated"
)

// MappingRule is the current-pointer side of the version store: one row per
// deployed rule version. The partial unique index enforces at most one ACTIVE
// row per (source_entity_id, field_name) at the storage layer, so a concurrent
// approve that would break the invariant fails with a unique violation instead
// of committing.
type MappingRule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// LineageID is stable across all versions of one rule; the first version's
	// lineage id equals its own row id.
	LineageID uuid.UUID `gorm:"type:uuid;column:lineage_id;not null;index" json:"lineage_id"`

	SourceEntityID uuid.UUID `gorm:"type:uuid;column:source_entity_id;not null;index:idx_mapping_rule_active,unique,priority:1,where:status = 'active'" json:"source_entity_id"`
	FieldName      string    `gorm:"column:field_name;not null;index:idx_mapping_rule_active,unique,priority:2,where:status = 'active'" json:"field_name"`

	ExtractionType string         `gorm:"column:extraction_type;not null" json:"extraction_type"`
	PatternPayload datatypes.JSON `gorm:"column:pattern_payload;type:jsonb;not null" json:"pattern_payload"`

	Confidence float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Priority   int     `gorm:"column:priority;not null;default:0" json:"priority"`

	Version int    `gorm:"column:version;not null" json:"version"`
	Status  string `gorm:"column:status;not null;default:'active';index" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MappingRule) TableName() string { return "mapping_rule" }

func (r *MappingRule) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RuleVersion is the append-only history side of the version store. Rows are
// never updated or deleted; rollback appends a new version that copies an old
// payload.
type RuleVersion struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// RuleID references the lineage, not an individual MappingRule row.
	RuleID  uuid.UUID `gorm:"type:uuid;column:rule_id;not null;index:idx_rule_version_lineage,unique,priority:1" json:"rule_id"`
	Version int       `gorm:"column:version;not null;index:idx_rule_version_lineage,unique,priority:2" json:"version"`

	ExtractionType string         `gorm:"column:extraction_type;not null" json:"extraction_type"`
	PatternPayload datatypes.JSON `gorm:"column:pattern_payload;type:jsonb;not null" json:"pattern_payload"`
	Confidence     float64        `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Priority       int            `gorm:"column:priority;not null;default:0" json:"priority"`

	ChangeReason string `gorm:"column:change_reason;type:text" json:"change_reason"`
	CreatedBy    string `gorm:"column:created_by" json:"created_by"`

	// SuggestionID links an approval-created version back to its suggestion.
	SuggestionID *uuid.UUID `gorm:"type:uuid;column:suggestion_id;index" json:"suggestion_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (RuleVersion) TableName() string { return "rule_version" }

func (v *RuleVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VersionDiff is the result of comparing two versions of one lineage.
type VersionDiff struct {
	RuleID   uuid.UUID       `json:"rule_id"`
	From     VersionMetadata `json:"from"`
	To       VersionMetadata `json:"to"`
	Segments []DiffSegment   `json:"segments"`
	// Identical is true when the serialized payloads match exactly, e.g.
	// comparing a rollback version against its target.
	Identical bool `json:"identical"`
}

type VersionMetadata struct {
	VersionID      uuid.UUID `json:"version_id"`
	Version        int       `json:"version"`
	ExtractionType string    `json:"extraction_type"`
	Confidence     float64   `json:"confidence"`
	Priority       int       `json:"priority"`
	ChangeReason   string    `json:"change_reason"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	DiffSegmentAdded     = "added"
	DiffSegmentRemoved   = "removed"
	DiffSegmentUnchanged = "unchanged"
)

type DiffSegment struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}
