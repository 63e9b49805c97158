package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blessbox/backend/internal/auth"
	"github.com/blessbox/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the platform role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextOrganizationID is the key for the organization (uuid.UUID) an org-scoped route acts on.
	ContextOrganizationID = "organization_id"
	// ContextOrganizationRole is the caller's role in that organization.
	ContextOrganizationRole = "organization_role"
)

// JWT returns a middleware that validates the bearer token and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
