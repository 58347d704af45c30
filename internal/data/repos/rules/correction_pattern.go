package rules

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type CorrectionPatternRepo interface {
	GetOrCreate(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string) (*types.CorrectionPattern, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CorrectionPattern, error)
	IncrementOccurrence(dbc dbctx.Context, id uuid.UUID) (int, error)
	MarkSuggested(dbc dbctx.Context, id uuid.UUID) (bool, error)
	SetInferenceOutcome(dbc dbctx.Context, id uuid.UUID, failed bool) error
	ListReattemptable(dbc dbctx.Context, minOccurrences int, limit int) ([]*types.CorrectionPattern, error)
}

type correctionPatternRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrectionPatternRepo(db *gorm.DB, baseLog *logger.Logger) CorrectionPatternRepo {
	return &correctionPatternRepo{
		db:  db,
		log: baseLog.With("repo", "CorrectionPatternRepo"),
	}
}

func (r *correctionPatternRepo) GetOrCreate(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string) (*types.CorrectionPattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sourceEntityID == uuid.Nil || fieldName == "" {
		return nil, types.ErrInvalidArgument
	}
	// Insert-or-ignore then read back, so two concurrent first corrections for
	// the same key converge on one row.
	seed := &types.CorrectionPattern{
		SourceEntityID: sourceEntityID,
		FieldName:      fieldName,
		Status:         types.PatternStatusCandidate,
	}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_entity_id"}, {Name: "field_name"}},
			DoNothing: true,
		}).
		Create(seed).Error; err != nil {
		return nil, err
	}
	var pattern types.CorrectionPattern
	if err := transaction.WithContext(dbc.Ctx).
		Where("source_entity_id = ? AND field_name = ?", sourceEntityID, fieldName).
		First(&pattern).Error; err != nil {
		return nil, err
	}
	return &pattern, nil
}

func (r *correctionPatternRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CorrectionPattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var pattern types.CorrectionPattern
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&pattern).Error
	if err != nil {
		return nil, err
	}
	if pattern.ID == uuid.Nil {
		return nil, nil
	}
	return &pattern, nil
}

func (r *correctionPatternRepo) IncrementOccurrence(dbc dbctx.Context, id uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionPattern{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"occurrence_count": gorm.Expr("occurrence_count + 1"),
			"updated_at":       time.Now(),
		}).Error; err != nil {
		return 0, err
	}
	var count int
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionPattern{}).
		Where("id = ?", id).
		Pluck("occurrence_count", &count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkSuggested flips candidate to suggested. Returns false when another
// writer already won the flip, which is how the threshold crossing stays
// edge-triggered.
func (r *correctionPatternRepo) MarkSuggested(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionPattern{}).
		Where("id = ? AND status = ?", id, types.PatternStatusCandidate).
		Updates(map[string]interface{}{
			"status":     types.PatternStatusSuggested,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *correctionPatternRepo) SetInferenceOutcome(dbc dbctx.Context, id uuid.UUID, failed bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionPattern{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_inference_failed": failed,
			"last_inference_at":     now,
			"updated_at":            now,
		}).Error
}

func (r *correctionPatternRepo) ListReattemptable(dbc dbctx.Context, minOccurrences int, limit int) ([]*types.CorrectionPattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.CorrectionPattern
	err := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND last_inference_failed = ? AND occurrence_count >= ?",
			types.PatternStatusCandidate, true, minOccurrences).
		Order("last_inference_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
