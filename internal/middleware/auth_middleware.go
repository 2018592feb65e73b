// auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/session"
)

const sessionKey = "session"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// AuthMiddleware resolves the bearer token into a session and stores it in
// the request context.
func AuthMiddleware(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		sess, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, backend.ErrNetwork):
			log.Warn("auth service unavailable", zap.String("requestId", c.GetString(requestIDKey)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadGateway, dto.ErrorResponse{
				Error:     "authentication service is unreachable, please try again",
				Retryable: true,
			})
			return
		case err != nil:
			log.Debug("authentication failed", zap.String("requestId", c.GetString(requestIDKey)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid or expired token"})
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// Session returns the session set by AuthMiddleware, or nil.
func Session(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
