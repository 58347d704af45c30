package app

import (
	"os"

	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/services"
	"github.com/freightdesk/rulelearn-backend/internal/simulation"
)

type Services struct {
	Corrections services.CorrectionService
	Suggestions services.SuggestionService
	Rules       services.RuleService
	RuleCache   services.RuleCache
	Simulation  *simulation.Engine
	Reattempt   *services.ReattemptWorker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rp Repos) Services {
	log.Info("Wiring services...")

	cache := services.NewNoopRuleCache()
	if os.Getenv("REDIS_ADDR") != "" {
		redisCache, err := services.NewRedisRuleCache(log)
		if err != nil {
			log.Warn("redis unavailable, running without rule cache", "error", err.Error())
		} else {
			cache = redisCache
		}
	}

	sim := simulation.NewEngine(services.NewRecordSource(rp.ExtractionRecords), log, cfg.SimWorkers, cfg.SimDefaultSampleSize, cfg.SimMaxSampleSize)

	corrections := services.NewCorrectionService(
		db, log,
		rp.CorrectionPatterns,
		rp.CorrectionSamples,
		rp.Suggestions,
		rp.ActiveRules,
		rp.ExtractionRecords,
		sim,
		cfg.PatternThreshold,
		cfg.PatternSampleWindow,
		cfg.ConfidenceFloor,
	)
	suggestions := services.NewSuggestionService(db, log, rp.Suggestions, rp.ActiveRules, rp.Versions, sim, cache)
	rules := services.NewRuleService(db, log, rp.ActiveRules, rp.Versions, cache)
	reattempt := services.NewReattemptWorker(log, rp.CorrectionPatterns, corrections, cfg.ReattemptInterval, cfg.PatternThreshold)

	return Services{
		Corrections: corrections,
		Suggestions: suggestions,
		Rules:       rules,
		RuleCache:   cache,
		Simulation:  sim,
		Reattempt:   reattempt,
	}
}
