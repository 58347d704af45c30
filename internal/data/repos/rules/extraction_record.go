package rules

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type ExtractionRecordRepo interface {
	Create(dbc dbctx.Context, records []*types.ExtractionRecord) ([]*types.ExtractionRecord, error)
	SampleForKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, spec types.SampleSpec) ([]*types.ExtractionRecord, error)
	GetByDocuments(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, documentIDs []uuid.UUID) ([]*types.ExtractionRecord, error)
}

type extractionRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExtractionRecordRepo(db *gorm.DB, baseLog *logger.Logger) ExtractionRecordRepo {
	return &extractionRecordRepo{
		db:  db,
		log: baseLog.With("repo", "ExtractionRecordRepo"),
	}
}

func (r *extractionRecordRepo) Create(dbc dbctx.Context, records []*types.ExtractionRecord) ([]*types.ExtractionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.ExtractionRecord{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SampleForKey orders by document_id so identical specs always return the
// same sample set.
func (r *extractionRecordRepo) SampleForKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, spec types.SampleSpec) ([]*types.ExtractionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("source_entity_id = ? AND field_name = ?", sourceEntityID, fieldName)
	if !spec.IncludeUnverified {
		q = q.Where("verified_value IS NOT NULL")
	}
	if spec.DateFrom != nil {
		q = q.Where("document_date >= ?", *spec.DateFrom)
	}
	if spec.DateTo != nil {
		q = q.Where("document_date <= ?", *spec.DateTo)
	}
	var out []*types.ExtractionRecord
	err := q.Order("document_id ASC").
		Limit(spec.SampleSize).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractionRecordRepo) GetByDocuments(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, documentIDs []uuid.UUID) ([]*types.ExtractionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ExtractionRecord
	if len(documentIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("source_entity_id = ? AND field_name = ? AND document_id IN ?",
			sourceEntityID, fieldName, documentIDs).
		Order("document_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
