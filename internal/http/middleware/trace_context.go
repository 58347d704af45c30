package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/freightdesk/rulelearn-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext resolves the trace and request ids for the review audit
// trail and echoes them back to the caller. An inbound header wins, then the
// active span, then a fresh uuid, so every correction and review decision is
// correlatable even without a tracing backend.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   resolveTraceID(c),
			RequestID: resolveRequestID(c),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", td.TraceID)
		c.Set("request_id", td.RequestID)
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)
		c.Next()
	}
}

func resolveRequestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerRequestID)); id != "" {
		return id
	}
	return uuid.New().String()
}

func resolveTraceID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerTraceID)); id != "" {
		return id
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	return uuid.New().String()
}
