// admin_only.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"order-tracking-service/internal/dto"
)

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := Session(c)
		if sess == nil || !sess.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "admin privileges required"})
			return
		}
		c.Next()
	}
}
