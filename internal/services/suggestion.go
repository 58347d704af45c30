package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/simulation"
)

// ReviewInput carries the reviewer decision fields shared by approve and
// reject.
type ReviewInput struct {
	Actor  string
	Notes  string
	Reason string
	Detail string
}

type SuggestionService interface {
	List(ctx context.Context, filter repos.SuggestionFilter) ([]*types.RuleSuggestion, error)
	Get(ctx context.Context, id uuid.UUID) (*types.RuleSuggestion, error)
	Approve(ctx context.Context, id uuid.UUID, in ReviewInput) (*types.MappingRule, error)
	Reject(ctx context.Context, id uuid.UUID, in ReviewInput) (*types.RuleSuggestion, error)
	Resimulate(ctx context.Context, id uuid.UUID, spec types.SampleSpec) (*types.ImpactAnalysisResult, error)
}

type suggestionService struct {
	db  *gorm.DB
	log *logger.Logger

	suggestions repos.RuleSuggestionRepo
	activeRules repos.MappingRuleRepo
	versions    repos.RuleVersionRepo

	sim   *simulation.Engine
	cache RuleCache
}

func NewSuggestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	suggestions repos.RuleSuggestionRepo,
	activeRules repos.MappingRuleRepo,
	versions repos.RuleVersionRepo,
	sim *simulation.Engine,
	cache RuleCache,
) SuggestionService {
	return &suggestionService{
		db:          db,
		log:         baseLog.With("service", "SuggestionService"),
		suggestions: suggestions,
		activeRules: activeRules,
		versions:    versions,
		sim:         sim,
		cache:       cache,
	}
}

func (s *suggestionService) List(ctx context.Context, filter repos.SuggestionFilter) ([]*types.RuleSuggestion, error) {
	return s.suggestions.List(dbctx.New(ctx, nil), filter)
}

func (s *suggestionService) Get(ctx context.Context, id uuid.UUID) (*types.RuleSuggestion, error) {
	suggestion, err := s.suggestions.GetByID(dbctx.New(ctx, nil), id)
	if err != nil {
		return nil, err
	}
	if suggestion == nil {
		return nil, types.ErrNotFound
	}
	return suggestion, nil
}

// Approve deploys a suggestion in one transaction: the suggestion flips to
// approved, the key's active rule (if any) is deprecated, a new active rule
// row is created at version+1, and a version history entry is appended. If
// any step fails nothing is committed. The partial unique index on active
// rules turns a racing approve for the same key into a unique violation,
// surfaced as a consistency violation instead of a second active rule.
func (s *suggestionService) Approve(ctx context.Context, id uuid.UUID, in ReviewInput) (*types.MappingRule, error) {
	var deployed *types.MappingRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)

		suggestion, err := s.suggestions.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if suggestion == nil {
			return types.ErrNotFound
		}
		if suggestion.Status != types.SuggestionStatusPending {
			return &types.InvalidTransitionError{
				Current:   suggestion.Status,
				Attempted: types.SuggestionStatusApproved,
			}
		}

		current, err := s.activeRules.GetActiveByKey(dbc, suggestion.SourceEntityID, suggestion.FieldName, true)
		if err != nil {
			return err
		}

		lineageID := uuid.Nil
		version := 1
		if current != nil {
			lineageID = current.LineageID
			version = current.Version + 1
			ok, err := s.activeRules.Deprecate(dbc, current.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &types.ConsistencyViolationError{Detail: "active rule changed during approval"}
			}
		}

		rule := &types.MappingRule{
			LineageID:      lineageID,
			SourceEntityID: suggestion.SourceEntityID,
			FieldName:      suggestion.FieldName,
			ExtractionType: suggestion.ExtractionType,
			PatternPayload: suggestion.SuggestedPatternPayload,
			Confidence:     suggestion.Confidence,
			Version:        version,
			Status:         types.RuleStatusActive,
		}
		if current != nil {
			rule.Priority = current.Priority
		}
		if _, err := s.activeRules.Create(dbc, rule); err != nil {
			return err
		}

		if _, err := s.versions.Append(dbc, &types.RuleVersion{
			RuleID:         rule.LineageID,
			Version:        version,
			ExtractionType: rule.ExtractionType,
			PatternPayload: rule.PatternPayload,
			Confidence:     rule.Confidence,
			Priority:       rule.Priority,
			ChangeReason:   changeReason("approved suggestion", in.Notes),
			CreatedBy:      in.Actor,
			SuggestionID:   &suggestion.ID,
		}); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":      types.SuggestionStatusApproved,
			"reviewed_by": in.Actor,
			"reviewed_at": time.Now().UTC(),
		}
		if in.Notes != "" {
			updates["review_notes"] = in.Notes
		}
		ok, err := s.suggestions.UpdateFieldsIfStatus(dbc, id, types.SuggestionStatusPending, updates)
		if err != nil {
			return err
		}
		if !ok {
			return &types.ConsistencyViolationError{Detail: "suggestion reviewed concurrently"}
		}

		deployed = rule
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &types.ConsistencyViolationError{Detail: "another rule was activated for this key"}
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, deployed.SourceEntityID)
	s.log.Info("suggestion approved",
		"suggestion_id", id.String(),
		"rule_id", deployed.LineageID.String(),
		"version", deployed.Version,
		"actor", in.Actor,
	)
	return deployed, nil
}

// Reject is terminal. The reason must come from the closed taxonomy, and the
// free-text detail is required so every rejection carries an explanation.
func (s *suggestionService) Reject(ctx context.Context, id uuid.UUID, in ReviewInput) (*types.RuleSuggestion, error) {
	if !types.ValidRejectReason(in.Reason) {
		return nil, types.ErrInvalidArgument
	}
	if strings.TrimSpace(in.Detail) == "" {
		return nil, types.ErrInvalidArgument
	}

	dbc := dbctx.New(ctx, nil)
	updates := map[string]interface{}{
		"status":           types.SuggestionStatusRejected,
		"rejection_reason": in.Reason,
		"rejection_detail": in.Detail,
		"reviewed_by":      in.Actor,
		"reviewed_at":      time.Now().UTC(),
	}
	if in.Notes != "" {
		updates["review_notes"] = in.Notes
	}
	ok, err := s.suggestions.UpdateFieldsIfStatus(dbc, id, types.SuggestionStatusPending, updates)
	if err != nil {
		return nil, err
	}
	suggestion, gErr := s.suggestions.GetByID(dbc, id)
	if gErr != nil {
		return nil, gErr
	}
	if suggestion == nil {
		return nil, types.ErrNotFound
	}
	if !ok {
		return nil, &types.InvalidTransitionError{
			Current:   suggestion.Status,
			Attempted: types.SuggestionStatusRejected,
		}
	}

	s.log.Info("suggestion rejected",
		"suggestion_id", id.String(),
		"reason", in.Reason,
		"actor", in.Actor,
	)
	return suggestion, nil
}

// Resimulate returns a fresh artifact for the given spec and never overwrites
// the snapshot captured at creation time. Terminal suggestions can still be
// re-simulated for audit.
func (s *suggestionService) Resimulate(ctx context.Context, id uuid.UUID, spec types.SampleSpec) (*types.ImpactAnalysisResult, error) {
	suggestion, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sim.Simulate(ctx, simulation.Request{
		SuggestionID:     suggestion.ID,
		SourceEntityID:   suggestion.SourceEntityID,
		FieldName:        suggestion.FieldName,
		CurrentPayload:   suggestion.CurrentPatternPayload,
		SuggestedPayload: suggestion.SuggestedPatternPayload,
		Spec:             spec,
	})
}

func changeReason(base, notes string) string {
	if notes == "" {
		return base
	}
	return base + ": " + notes
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
