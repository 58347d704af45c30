package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type HealthHandler struct {
	log     *logger.Logger
	rules   repos.MappingRuleRepo
	version string
}

func NewHealthHandler(baseLog *logger.Logger, rules repos.MappingRuleRepo, version string) *HealthHandler {
	return &HealthHandler{
		log:     baseLog.With("handler", "HealthHandler"),
		rules:   rules,
		version: version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	count, err := h.rules.CountAll(dbctx.New(c.Request.Context(), nil))
	if err != nil {
		h.log.Error("HealthCheck rule count failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"service": "rulelearn-backend",
			"version": h.version,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "rulelearn-backend",
		"version": h.version,
		"rules":   count,
	})
}
