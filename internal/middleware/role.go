package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/response"
)

// RequireRole allows only the given platform roles. Organization roles are checked by organizations.RequireMember.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ContextUserRole))
		if role == "" {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}
