package db

import (
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"gorm.io/gorm"
)

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	return AutoMigrate(s.db)
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.CorrectionPattern{},
		&types.CorrectionSample{},
		&types.RuleSuggestion{},
		&types.MappingRule{},
		&types.RuleVersion{},
		&types.ExtractionRecord{},
	)
}
