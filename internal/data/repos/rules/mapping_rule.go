package rules

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type MappingRuleRepo interface {
	Create(dbc dbctx.Context, rule *types.MappingRule) (*types.MappingRule, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MappingRule, error)
	GetActiveByKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, lock bool) (*types.MappingRule, error)
	GetActiveByLineage(dbc dbctx.Context, lineageID uuid.UUID, lock bool) (*types.MappingRule, error)
	ListActive(dbc dbctx.Context, sourceEntityID uuid.UUID) ([]*types.MappingRule, error)
	Deprecate(dbc dbctx.Context, id uuid.UUID) (bool, error)
	CountAll(dbc dbctx.Context) (int64, error)
}

type mappingRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMappingRuleRepo(db *gorm.DB, baseLog *logger.Logger) MappingRuleRepo {
	return &mappingRuleRepo{
		db:  db,
		log: baseLog.With("repo", "MappingRuleRepo"),
	}
}

func (r *mappingRuleRepo) Create(dbc dbctx.Context, rule *types.MappingRule) (*types.MappingRule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rule == nil {
		return nil, types.ErrInvalidArgument
	}
	if err := transaction.WithContext(dbc.Ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	// First version of a lineage adopts its own row id as the lineage id.
	if rule.LineageID == uuid.Nil {
		rule.LineageID = rule.ID
		if err := transaction.WithContext(dbc.Ctx).
			Model(&types.MappingRule{}).
			Where("id = ?", rule.ID).
			Update("lineage_id", rule.ID).Error; err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func (r *mappingRuleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MappingRule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rule types.MappingRule
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == uuid.Nil {
		return nil, nil
	}
	return &rule, nil
}

func (r *mappingRuleRepo) GetActiveByKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string, lock bool) (*types.MappingRule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("source_entity_id = ? AND field_name = ? AND status = ?",
			sourceEntityID, fieldName, types.RuleStatusActive)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rule types.MappingRule
	err := q.First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *mappingRuleRepo) GetActiveByLineage(dbc dbctx.Context, lineageID uuid.UUID, lock bool) (*types.MappingRule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("lineage_id = ? AND status = ?", lineageID, types.RuleStatusActive)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rule types.MappingRule
	err := q.First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *mappingRuleRepo) ListActive(dbc dbctx.Context, sourceEntityID uuid.UUID) ([]*types.MappingRule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("status = ?", types.RuleStatusActive)
	if sourceEntityID != uuid.Nil {
		q = q.Where("source_entity_id = ?", sourceEntityID)
	}
	var out []*types.MappingRule
	if err := q.Order("source_entity_id ASC, field_name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Deprecate is a CAS on status so two concurrent approvals cannot both believe
// they retired the same active row.
func (r *mappingRuleRepo) Deprecate(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.MappingRule{}).
		Where("id = ? AND status = ?", id, types.RuleStatusActive).
		Updates(map[string]interface{}{
			"status":     types.RuleStatusDeprecated,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *mappingRuleRepo) CountAll(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.MappingRule{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
