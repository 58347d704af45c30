package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/http/response"
	"github.com/freightdesk/rulelearn-backend/internal/platform/ctxutil"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/services"
)

type SuggestionHandler struct {
	log         *logger.Logger
	suggestions services.SuggestionService
}

func NewSuggestionHandler(baseLog *logger.Logger, suggestions services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{
		log:         baseLog.With("handler", "SuggestionHandler"),
		suggestions: suggestions,
	}
}

func (h *SuggestionHandler) List(c *gin.Context) {
	filter := repos.SuggestionFilter{
		Status:    c.Query("status"),
		FieldName: c.Query("field_name"),
	}
	if raw := c.Query("source_entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_source_entity_id", err)
			return
		}
		filter.SourceEntityID = id
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Offset = n
		}
	}

	out, err := h.suggestions.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("List failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_suggestions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"suggestions": out})
}

func (h *SuggestionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	suggestion, err := h.suggestions.Get(c.Request.Context(), id)
	if err != nil {
		respondSuggestionError(c, h.log, "Get", err)
		return
	}
	response.RespondOK(c, gin.H{"suggestion": suggestion})
}

type reviewRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func (h *SuggestionHandler) Approve(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)

	rule, err := h.suggestions.Approve(c.Request.Context(), id, services.ReviewInput{
		Actor: ctxutil.GetActor(c.Request.Context()),
		Notes: req.Notes,
	})
	if err != nil {
		respondSuggestionError(c, h.log, "Approve", err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

func (h *SuggestionHandler) Reject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	suggestion, err := h.suggestions.Reject(c.Request.Context(), id, services.ReviewInput{
		Actor:  ctxutil.GetActor(c.Request.Context()),
		Notes:  req.Notes,
		Reason: req.Reason,
		Detail: req.Detail,
	})
	if err != nil {
		respondSuggestionError(c, h.log, "Reject", err)
		return
	}
	response.RespondOK(c, gin.H{"suggestion": suggestion})
}

type resimulateRequest struct {
	SampleSize        int        `json:"sample_size"`
	DateFrom          *time.Time `json:"date_from"`
	DateTo            *time.Time `json:"date_to"`
	IncludeUnverified bool       `json:"include_unverified"`
}

func (h *SuggestionHandler) Resimulate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req resimulateRequest
	_ = c.ShouldBindJSON(&req)

	impact, err := h.suggestions.Resimulate(c.Request.Context(), id, types.SampleSpec{
		SampleSize:        req.SampleSize,
		DateFrom:          req.DateFrom,
		DateTo:            req.DateTo,
		IncludeUnverified: req.IncludeUnverified,
	})
	if err != nil {
		respondSuggestionError(c, h.log, "Resimulate", err)
		return
	}
	response.RespondOK(c, gin.H{"impact": impact})
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func respondSuggestionError(c *gin.Context, log *logger.Logger, op string, err error) {
	var transition *types.InvalidTransitionError
	var consistency *types.ConsistencyViolationError
	switch {
	case errors.Is(err, types.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "suggestion_not_found", err)
	case errors.Is(err, types.ErrInvalidArgument):
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.As(err, &transition):
		response.RespondError(c, http.StatusConflict, "invalid_transition", err)
	case errors.As(err, &consistency):
		response.RespondError(c, http.StatusConflict, "consistency_violation", err)
	default:
		log.Error(op+" failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
