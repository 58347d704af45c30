package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

const minVersionHistory = 5

type RuleService interface {
	GetActive(ctx context.Context, sourceEntityID uuid.UUID) ([]*types.MappingRule, error)
	GetVersions(ctx context.Context, ruleID uuid.UUID, limit int) ([]*types.RuleVersion, error)
	Compare(ctx context.Context, ruleID uuid.UUID, fromVersion, toVersion int) (*types.VersionDiff, error)
	Rollback(ctx context.Context, ruleID uuid.UUID, targetVersion int, actor string) (*types.MappingRule, error)
}

type ruleService struct {
	db  *gorm.DB
	log *logger.Logger

	activeRules repos.MappingRuleRepo
	versions    repos.RuleVersionRepo

	cache RuleCache
}

func NewRuleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	activeRules repos.MappingRuleRepo,
	versions repos.RuleVersionRepo,
	cache RuleCache,
) RuleService {
	return &ruleService{
		db:          db,
		log:         baseLog.With("service", "RuleService"),
		activeRules: activeRules,
		versions:    versions,
		cache:       cache,
	}
}

// GetActive serves the deployed rule set, cache-aside per source entity.
// The full listing (nil entity) always reads through to the database.
func (s *ruleService) GetActive(ctx context.Context, sourceEntityID uuid.UUID) ([]*types.MappingRule, error) {
	if sourceEntityID != uuid.Nil {
		if raw, ok := s.cache.Get(ctx, sourceEntityID); ok {
			var cached []*types.MappingRule
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.cache.Invalidate(ctx, sourceEntityID)
		}
	}

	out, err := s.activeRules.ListActive(dbctx.New(ctx, nil), sourceEntityID)
	if err != nil {
		return nil, err
	}
	if sourceEntityID != uuid.Nil {
		if raw, err := json.Marshal(out); err == nil {
			s.cache.Set(ctx, sourceEntityID, raw)
		}
	}
	return out, nil
}

func (s *ruleService) GetVersions(ctx context.Context, ruleID uuid.UUID, limit int) ([]*types.RuleVersion, error) {
	if limit < minVersionHistory {
		limit = minVersionHistory
	}
	out, err := s.versions.ListByLineage(dbctx.New(ctx, nil), ruleID, limit)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, types.ErrNotFound
	}
	return out, nil
}

// Compare diffs the serialized payloads of two versions of one lineage.
// Payloads are re-marshalled from a map first so key order is canonical and
// the diff reflects real changes only.
func (s *ruleService) Compare(ctx context.Context, ruleID uuid.UUID, fromVersion, toVersion int) (*types.VersionDiff, error) {
	dbc := dbctx.New(ctx, nil)
	from, err := s.versions.GetByLineageAndVersion(dbc, ruleID, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := s.versions.GetByLineageAndVersion(dbc, ruleID, toVersion)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, types.ErrVersionNotFound
	}

	fromText, err := canonicalPayload(from.PatternPayload)
	if err != nil {
		return nil, err
	}
	toText, err := canonicalPayload(to.PatternPayload)
	if err != nil {
		return nil, err
	}

	diff := &types.VersionDiff{
		RuleID:    ruleID,
		From:      versionMetadata(from),
		To:        versionMetadata(to),
		Identical: fromText == toText,
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(fromText, toText, false)
	dmp.DiffCleanupSemantic(diffs)
	for _, d := range diffs {
		seg := types.DiffSegment{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			seg.Kind = types.DiffSegmentAdded
		case diffmatchpatch.DiffDelete:
			seg.Kind = types.DiffSegmentRemoved
		default:
			seg.Kind = types.DiffSegmentUnchanged
		}
		diff.Segments = append(diff.Segments, seg)
	}
	return diff, nil
}

// Rollback re-deploys an old payload as a brand new version. History is never
// rewritten: the lineage gains a version whose payload copies the target
// verbatim, and the previously active row is deprecated in the same
// transaction.
func (s *ruleService) Rollback(ctx context.Context, ruleID uuid.UUID, targetVersion int, actor string) (*types.MappingRule, error) {
	var deployed *types.MappingRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)

		target, err := s.versions.GetByLineageAndVersion(dbc, ruleID, targetVersion)
		if err != nil {
			return err
		}
		if target == nil {
			return types.ErrVersionNotFound
		}

		current, err := s.activeRules.GetActiveByLineage(dbc, ruleID, true)
		if err != nil {
			return err
		}
		if current == nil {
			return types.ErrNotFound
		}
		if current.Version == targetVersion {
			deployed = current
			return nil
		}

		latest, err := s.versions.LatestVersion(dbc, ruleID)
		if err != nil {
			return err
		}

		ok, err := s.activeRules.Deprecate(dbc, current.ID)
		if err != nil {
			return err
		}
		if !ok {
			return &types.ConsistencyViolationError{Detail: "active rule changed during rollback"}
		}

		rule := &types.MappingRule{
			LineageID:      ruleID,
			SourceEntityID: current.SourceEntityID,
			FieldName:      current.FieldName,
			ExtractionType: target.ExtractionType,
			PatternPayload: target.PatternPayload,
			Confidence:     target.Confidence,
			Priority:       target.Priority,
			Version:        latest + 1,
			Status:         types.RuleStatusActive,
		}
		if _, err := s.activeRules.Create(dbc, rule); err != nil {
			return err
		}

		if _, err := s.versions.Append(dbc, &types.RuleVersion{
			RuleID:         ruleID,
			Version:        rule.Version,
			ExtractionType: rule.ExtractionType,
			PatternPayload: rule.PatternPayload,
			Confidence:     rule.Confidence,
			Priority:       rule.Priority,
			ChangeReason:   fmt.Sprintf("rollback to version %d", targetVersion),
			CreatedBy:      actor,
		}); err != nil {
			return err
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
	s.log.Info("rule rolled back",
		"rule_id", ruleID.String(),
		"target_version", targetVersion,
		"new_version", deployed.Version,
		"actor", actor,
	)
	return deployed, nil
}

func canonicalPayload(raw []byte) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func versionMetadata(v *types.RuleVersion) types.VersionMetadata {
	return types.VersionMetadata{
		VersionID:      v.ID,
		Version:        v.Version,
		ExtractionType: v.ExtractionType,
		Confidence:     v.Confidence,
		Priority:       v.Priority,
		ChangeReason:   v.ChangeReason,
		CreatedBy:      v.CreatedBy,
		CreatedAt:      v.CreatedAt,
	}
}
