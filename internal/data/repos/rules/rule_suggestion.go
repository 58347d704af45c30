package rules

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

// SuggestionFilter narrows List. Zero values mean "any".
type SuggestionFilter struct {
	Status         string
	SourceEntityID uuid.UUID
	FieldName      string
	Limit          int
	Offset         int
}

type RuleSuggestionRepo interface {
	Create(dbc dbctx.Context, suggestion *types.RuleSuggestion) (*types.RuleSuggestion, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RuleSuggestion, error)
	List(dbc dbctx.Context, filter SuggestionFilter) ([]*types.RuleSuggestion, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, requiredStatus string, updates map[string]interface{}) (bool, error)
	ExistsPendingForKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string) (bool, error)
}

type ruleSuggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) RuleSuggestionRepo {
	return &ruleSuggestionRepo{
		db:  db,
		log: baseLog.With("repo", "RuleSuggestionRepo"),
	}
}

func (r *ruleSuggestionRepo) Create(dbc dbctx.Context, suggestion *types.RuleSuggestion) (*types.RuleSuggestion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if suggestion == nil {
		return nil, types.ErrInvalidArgument
	}
	if err := transaction.WithContext(dbc.Ctx).Create(suggestion).Error; err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *ruleSuggestionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RuleSuggestion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var suggestion types.RuleSuggestion
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&suggestion).Error
	if err != nil {
		return nil, err
	}
	if suggestion.ID == uuid.Nil {
		return nil, nil
	}
	return &suggestion, nil
}

func (r *ruleSuggestionRepo) List(dbc dbctx.Context, filter SuggestionFilter) ([]*types.RuleSuggestion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.RuleSuggestion{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SourceEntityID != uuid.Nil {
		q = q.Where("source_entity_id = ?", filter.SourceEntityID)
	}
	if filter.FieldName != "" {
		q = q.Where("field_name = ?", filter.FieldName)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.RuleSuggestion
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFieldsIfStatus guards lifecycle transitions: the update only lands
// when the row is still in requiredStatus, and the caller learns whether it
// did from the bool.
func (r *ruleSuggestionRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, requiredStatus string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.RuleSuggestion{}).
		Where("id = ? AND status = ?", id, requiredStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ruleSuggestionRepo) ExistsPendingForKey(dbc dbctx.Context, sourceEntityID uuid.UUID, fieldName string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.RuleSuggestion{}).
		Where("source_entity_id = ? AND field_name = ? AND status = ?",
			sourceEntityID, fieldName, types.SuggestionStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
