package rules

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type CorrectionSampleRepo interface {
	Create(dbc dbctx.Context, sample *types.CorrectionSample) (*types.CorrectionSample, error)
	Recent(dbc dbctx.Context, patternID uuid.UUID, limit int) ([]*types.CorrectionSample, error)
	PruneToWindow(dbc dbctx.Context, patternID uuid.UUID, window int) error
	CountByPattern(dbc dbctx.Context, patternID uuid.UUID) (int64, error)
}

type correctionSampleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrectionSampleRepo(db *gorm.DB, baseLog *logger.Logger) CorrectionSampleRepo {
	return &correctionSampleRepo{
		db:  db,
		log: baseLog.With("repo", "CorrectionSampleRepo"),
	}
}

func (r *correctionSampleRepo) Create(dbc dbctx.Context, sample *types.CorrectionSample) (*types.CorrectionSample, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sample == nil {
		return nil, types.ErrInvalidArgument
	}
	if err := transaction.WithContext(dbc.Ctx).Create(sample).Error; err != nil {
		return nil, err
	}
	return sample, nil
}

// Recent returns the newest samples first. Ties on corrected_at break on id so
// inference always sees the same ordering.
func (r *correctionSampleRepo) Recent(dbc dbctx.Context, patternID uuid.UUID, limit int) ([]*types.CorrectionSample, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*types.CorrectionSample
	err := transaction.WithContext(dbc.Ctx).
		Where("pattern_id = ?", patternID).
		Order("corrected_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneToWindow drops everything older than the newest window samples for the
// pattern, keeping the sample table bounded per key.
func (r *correctionSampleRepo) PruneToWindow(dbc dbctx.Context, patternID uuid.UUID, window int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if window <= 0 {
		return nil
	}
	keep := transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionSample{}).
		Select("id").
		Where("pattern_id = ?", patternID).
		Order("corrected_at DESC, id DESC").
		Limit(window)
	return transaction.WithContext(dbc.Ctx).
		Where("pattern_id = ? AND id NOT IN (?)", patternID, keep).
		Delete(&types.CorrectionSample{}).Error
}

func (r *correctionSampleRepo) CountByPattern(dbc dbctx.Context, patternID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.CorrectionSample{}).
		Where("pattern_id = ?", patternID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
