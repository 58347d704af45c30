package rules

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type RuleVersionRepo interface {
	Append(dbc dbctx.Context, version *types.RuleVersion) (*types.RuleVersion, error)
	ListByLineage(dbc dbctx.Context, ruleID uuid.UUID, limit int) ([]*types.RuleVersion, error)
	GetByLineageAndVersion(dbc dbctx.Context, ruleID uuid.UUID, version int) (*types.RuleVersion, error)
	LatestVersion(dbc dbctx.Context, ruleID uuid.UUID) (int, error)
}

type ruleVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleVersionRepo(db *gorm.DB, baseLog *logger.Logger) RuleVersionRepo {
	return &ruleVersionRepo{
		db:  db,
		log: baseLog.With("repo", "RuleVersionRepo"),
	}
}

// Append only ever inserts. The unique (rule_id, version) index rejects a
// duplicate version number from a racing writer.
func (r *ruleVersionRepo) Append(dbc dbctx.Context, version *types.RuleVersion) (*types.RuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if version == nil {
		return nil, types.ErrInvalidArgument
	}
	if err := transaction.WithContext(dbc.Ctx).Create(version).Error; err != nil {
		return nil, err
	}
	return version, nil
}

func (r *ruleVersionRepo) ListByLineage(dbc dbctx.Context, ruleID uuid.UUID, limit int) ([]*types.RuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*types.RuleVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("rule_id = ?", ruleID).
		Order("version DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ruleVersionRepo) GetByLineageAndVersion(dbc dbctx.Context, ruleID uuid.UUID, version int) (*types.RuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.RuleVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("rule_id = ? AND version = ?", ruleID, version).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ruleVersionRepo) LatestVersion(dbc dbctx.Context, ruleID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var latest *int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.RuleVersion{}).
		Where("rule_id = ?", ruleID).
		Select("MAX(version)").
		Scan(&latest).Error
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return *latest, nil
}
