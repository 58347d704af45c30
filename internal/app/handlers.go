package app

import (
	httpH "github.com/freightdesk/rulelearn-backend/internal/http/handlers"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type Handlers struct {
	Corrections *httpH.CorrectionHandler
	Suggestions *httpH.SuggestionHandler
	Rules       *httpH.RuleHandler
	Health      *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, sv Services, rp Repos, version string) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Corrections: httpH.NewCorrectionHandler(log, sv.Corrections),
		Suggestions: httpH.NewSuggestionHandler(log, sv.Suggestions),
		Rules:       httpH.NewRuleHandler(log, sv.Rules),
		Health:      httpH.NewHealthHandler(log, rp.ActiveRules, version),
	}
}
