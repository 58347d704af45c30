package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/http/response"
	"github.com/freightdesk/rulelearn-backend/internal/platform/ctxutil"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/services"
)

type RuleHandler struct {
	log   *logger.Logger
	rules services.RuleService
}

func NewRuleHandler(baseLog *logger.Logger, rules services.RuleService) *RuleHandler {
	return &RuleHandler{
		log:   baseLog.With("handler", "RuleHandler"),
		rules: rules,
	}
}

func (h *RuleHandler) ListActive(c *gin.Context) {
	sourceEntityID := uuid.Nil
	if raw := c.Query("source_entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_source_entity_id", err)
			return
		}
		sourceEntityID = id
	}
	out, err := h.rules.GetActive(c.Request.Context(), sourceEntityID)
	if err != nil {
		h.log.Error("ListActive failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_rules_failed", err)
		return
	}
	if fieldName := c.Query("field_name"); fieldName != "" {
		filtered := out[:0]
		for _, rule := range out {
			if rule.FieldName == fieldName {
				filtered = append(filtered, rule)
			}
		}
		out = filtered
	}
	response.RespondOK(c, gin.H{"rules": out})
}

func (h *RuleHandler) ListVersions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	out, err := h.rules.GetVersions(c.Request.Context(), id, limit)
	if err != nil {
		respondRuleError(c, h.log, "ListVersions", err)
		return
	}
	response.RespondOK(c, gin.H{"versions": out})
}

func (h *RuleHandler) CompareVersions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_from_version", err)
		return
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_to_version", err)
		return
	}
	diff, err := h.rules.Compare(c.Request.Context(), id, from, to)
	if err != nil {
		respondRuleError(c, h.log, "CompareVersions", err)
		return
	}
	response.RespondOK(c, gin.H{"diff": diff})
}

type rollbackRequest struct {
	TargetVersion int `json:"target_version" binding:"required"`
}

func (h *RuleHandler) Rollback(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	rule, err := h.rules.Rollback(c.Request.Context(), id, req.TargetVersion, ctxutil.GetActor(c.Request.Context()))
	if err != nil {
		respondRuleError(c, h.log, "Rollback", err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

func respondRuleError(c *gin.Context, log *logger.Logger, op string, err error) {
	var consistency *types.ConsistencyViolationError
	switch {
	case errors.Is(err, types.ErrVersionNotFound):
		response.RespondError(c, http.StatusNotFound, "version_not_found", err)
	case errors.Is(err, types.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "rule_not_found", err)
	case errors.As(err, &consistency):
		response.RespondError(c, http.StatusConflict, "consistency_violation", err)
	default:
		log.Error(op+" failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
