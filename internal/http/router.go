package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/freightdesk/rulelearn-backend/internal/http/handlers"
	httpMW "github.com/freightdesk/rulelearn-backend/internal/http/middleware"
	"github.com/freightdesk/rulelearn-backend/internal/observability"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ActorMiddleware *httpMW.ActorMiddleware

	CorrectionHandler *httpH.CorrectionHandler
	SuggestionHandler *httpH.SuggestionHandler
	RuleHandler       *httpH.RuleHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS())
	if observability.Enabled() {
		r.Use(otelgin.Middleware("rulelearn"))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.ActorMiddleware != nil {
		r.Use(cfg.ActorMiddleware.Attach())
	}
	r.Use(httpMW.RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.CorrectionHandler != nil {
			api.POST("/corrections", cfg.CorrectionHandler.Record)
		}

		if cfg.SuggestionHandler != nil {
			api.GET("/suggestions", cfg.SuggestionHandler.List)
			api.GET("/suggestions/:id", cfg.SuggestionHandler.Get)
			api.POST("/suggestions/:id/resimulate", cfg.SuggestionHandler.Resimulate)
		}

		if cfg.RuleHandler != nil {
			api.GET("/rules/active", cfg.RuleHandler.ListActive)
			api.GET("/rules/:id/versions", cfg.RuleHandler.ListVersions)
			api.GET("/rules/:id/versions/compare", cfg.RuleHandler.CompareVersions)
		}
	}

	// Lifecycle mutations need an attributable reviewer.
	reviewed := r.Group("/api")
	{
		if cfg.ActorMiddleware != nil {
			reviewed.Use(cfg.ActorMiddleware.RequireActor())
		}
		if cfg.SuggestionHandler != nil {
			reviewed.POST("/suggestions/:id/approve", cfg.SuggestionHandler.Approve)
			reviewed.POST("/suggestions/:id/reject", cfg.SuggestionHandler.Reject)
		}
		if cfg.RuleHandler != nil {
			reviewed.POST("/rules/:id/rollback", cfg.RuleHandler.Rollback)
		}
	}

	return r
}
