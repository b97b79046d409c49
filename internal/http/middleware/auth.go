package middleware

import (
	"net/http"
	"strings"

	"cashback_platform/internal/logger"
	"cashback_platform/internal/service"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWT.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// JWT verifies the bearer token and stores the caller's id and role on the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authorization header required"})
			return
		}

		claims, err := service.ParseJWT(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid or expired token"})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), "user_id", claims.UserID))
		c.Next()
	}
}

// RequireRole must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "insufficient role"})
	}
}
