package repos

import (
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos/rules"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type CorrectionPatternRepo = rules.CorrectionPatternRepo
type CorrectionSampleRepo = rules.CorrectionSampleRepo
type RuleSuggestionRepo = rules.RuleSuggestionRepo
type MappingRuleRepo = rules.MappingRuleRepo
type RuleVersionRepo = rules.RuleVersionRepo
type ExtractionRecordRepo = rules.ExtractionRecordRepo

type SuggestionFilter = rules.SuggestionFilter

func NewCorrectionPatternRepo(db *gorm.DB, baseLog *logger.Logger) CorrectionPatternRepo {
	return rules.NewCorrectionPatternRepo(db, baseLog)
}

func NewCorrectionSampleRepo(db *gorm.DB, baseLog *logger.Logger) CorrectionSampleRepo {
	return rules.NewCorrectionSampleRepo(db, baseLog)
}

func NewRuleSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) RuleSuggestionRepo {
	return rules.NewRuleSuggestionRepo(db, baseLog)
}

func NewMappingRuleRepo(db *gorm.DB, baseLog *logger.Logger) MappingRuleRepo {
	return rules.NewMappingRuleRepo(db, baseLog)
}

func NewRuleVersionRepo(db *gorm.DB, baseLog *logger.Logger) RuleVersionRepo {
	return rules.NewRuleVersionRepo(db, baseLog)
}

func NewExtractionRecordRepo(db *gorm.DB, baseLog *logger.Logger) ExtractionRecordRepo {
	return rules.NewExtractionRecordRepo(db, baseLog)
}
