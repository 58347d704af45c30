// Package seed loads a default rule set from a YAML file into an empty rule
// store, so a fresh deployment starts with the baseline extraction rules
// instead of none.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gopkg.in/yaml.v3"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

type seedRule struct {
	SourceEntityID string         `yaml:"source_entity_id"`
	FieldName      string         `yaml:"field_name"`
	ExtractionType string         `yaml:"extraction_type"`
	Payload        map[string]any `yaml:"payload"`
	Confidence     float64        `yaml:"confidence"`
	Priority       int            `yaml:"priority"`
}

// Load reads the seed file at path and deploys each rule as version 1 of a
// new lineage. A non-empty rule store is left untouched.
func Load(ctx context.Context, db *gorm.DB, baseLog *logger.Logger, activeRules repos.MappingRuleRepo, versions repos.RuleVersionRepo, path string) error {
	log := baseLog.With("component", "seed")

	count, err := activeRules.CountAll(dbctx.New(ctx, nil))
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug("rule store not empty, skipping seed", "rules", count)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		for i, sr := range file.Rules {
			sid, err := uuid.Parse(sr.SourceEntityID)
			if err != nil {
				return fmt.Errorf("seed rule %d: bad source_entity_id: %w", i, err)
			}
			payload, err := types.MarshalPayload(sr.Payload)
			if err != nil {
				return fmt.Errorf("seed rule %d: %w", i, err)
			}
			rule := &types.MappingRule{
				SourceEntityID: sid,
				FieldName:      sr.FieldName,
				ExtractionType: sr.ExtractionType,
				PatternPayload: payload,
				Confidence:     sr.Confidence,
				Priority:       sr.Priority,
				Version:        1,
				Status:         types.RuleStatusActive,
			}
			if _, err := activeRules.Create(dbc, rule); err != nil {
				return fmt.Errorf("seed rule %d: %w", i, err)
			}
			if _, err := versions.Append(dbc, &types.RuleVersion{
				RuleID:         rule.LineageID,
				Version:        1,
				ExtractionType: rule.ExtractionType,
				PatternPayload: rule.PatternPayload,
				Confidence:     rule.Confidence,
				Priority:       rule.Priority,
				ChangeReason:   "seeded default rule",
				CreatedBy:      "system",
			}); err != nil {
				return fmt.Errorf("seed rule %d: %w", i, err)
			}
		}
		log.Info("seeded default rules", "rules", len(file.Rules))
		return nil
	})
}
