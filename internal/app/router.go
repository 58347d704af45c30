package app

import (
	internalhttp "github.com/freightdesk/rulelearn-backend/internal/http"
	httpMW "github.com/freightdesk/rulelearn-backend/internal/http/middleware"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, h Handlers, actor *httpMW.ActorMiddleware) *internalhttp.Server {
	log.Info("Wiring router...")
	return internalhttp.NewServer(internalhttp.RouterConfig{
		Log:               log,
		ActorMiddleware:   actor,
		CorrectionHandler: h.Corrections,
		SuggestionHandler: h.Suggestions,
		RuleHandler:       h.Rules,
		HealthHandler:     h.Health,
	})
}
