package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maribel/gemlens/internal/logger"
)

// Header names set by the upstream gateway after it authenticates the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Gin context keys for the authenticated principal.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

// Identity extracts the caller's identity from the gateway headers and
// rejects requests without one. The role defaults to "seller".
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "X-User-ID header is required",
			})
			return
		}
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = "seller"
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, role)

		ctx := logger.WithFields(c.Request.Context(), logger.Fields{
			logger.FieldUserID: userID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserID returns the authenticated user ID from the Gin context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// UserRole returns the authenticated user's role from the Gin context.
func UserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
