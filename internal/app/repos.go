package app

import (
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type Repos struct {
	CorrectionPatterns repos.CorrectionPatternRepo
	CorrectionSamples  repos.CorrectionSampleRepo
	Suggestions        repos.RuleSuggestionRepo
	ActiveRules        repos.MappingRuleRepo
	Versions           repos.RuleVersionRepo
	ExtractionRecords  repos.ExtractionRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CorrectionPatterns: repos.NewCorrectionPatternRepo(db, log),
		CorrectionSamples:  repos.NewCorrectionSampleRepo(db, log),
		Suggestions:        repos.NewRuleSuggestionRepo(db, log),
		ActiveRules:        repos.NewMappingRuleRepo(db, log),
		Versions:           repos.NewRuleVersionRepo(db, log),
		ExtractionRecords:  repos.NewExtractionRecordRepo(db, log),
	}
}
