package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freightdesk/rulelearn-backend/internal/http/response"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/services"
)

type CorrectionHandler struct {
	log         *logger.Logger
	corrections services.CorrectionService
}

func NewCorrectionHandler(baseLog *logger.Logger, corrections services.CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{
		log:         baseLog.With("handler", "CorrectionHandler"),
		corrections: corrections,
	}
}

type recordCorrectionRequest struct {
	SourceEntityID string     `json:"source_entity_id" binding:"required"`
	FieldName      string     `json:"field_name" binding:"required"`
	DocumentID     string     `json:"document_id" binding:"required"`
	OriginalValue  *string    `json:"original_value"`
	CorrectedValue string     `json:"corrected_value" binding:"required"`
	CorrectedAt    *time.Time `json:"corrected_at"`
}

func (h *CorrectionHandler) Record(c *gin.Context) {
	var req recordCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sourceEntityID, err := uuid.Parse(req.SourceEntityID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_entity_id", err)
		return
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	in := services.RecordCorrectionInput{
		SourceEntityID: sourceEntityID,
		FieldName:      req.FieldName,
		DocumentID:     documentID,
		OriginalValue:  req.OriginalValue,
		CorrectedValue: req.CorrectedValue,
	}
	if req.CorrectedAt != nil {
		in.CorrectedAt = *req.CorrectedAt
	}

	state, err := h.corrections.Record(c.Request.Context(), in)
	if err != nil {
		h.log.Error("Record failed", "error", err, "field_name", req.FieldName)
		response.RespondError(c, http.StatusInternalServerError, "record_correction_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"pattern": state})
}
