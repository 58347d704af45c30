package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/freightdesk/rulelearn-backend/internal/platform/ctxutil"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

// ActorMiddleware resolves the reviewer identity from a bearer token so
// approvals, rejections and rollbacks carry attribution.
type ActorMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewActorMiddleware(baseLog *logger.Logger) *ActorMiddleware {
	return &ActorMiddleware{
		log:    baseLog.With("middleware", "ActorMiddleware"),
		secret: []byte(os.Getenv("JWT_SECRET_KEY")),
	}
}

// Attach parses the token when present and stashes the actor in the request
// context. Read-only endpoints stay accessible without one.
func (am *ActorMiddleware) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := am.resolve(c); actor != "" {
			c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// RequireActor guards lifecycle endpoints: no attributable identity, no
// mutation.
func (am *ActorMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := am.resolve(c)
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (am *ActorMiddleware) resolve(c *gin.Context) string {
	raw := extractBearer(c)
	if raw == "" || len(am.secret) == 0 {
		return ""
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil || !token.Valid {
		am.log.Debug("token rejected", "error", fmt.Sprintf("%v", err))
		return ""
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	if email, ok := claims["email"].(string); ok {
		return email
	}
	return ""
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
