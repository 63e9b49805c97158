package organizations

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/response"
)

// RoleLookup resolves a user's role in an organization ("" when not a member).
type RoleLookup interface {
	GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
}

// RequireMember checks that the caller belongs to the organization in the :id path param
// and stores the organization ID and role in context. With manage set, staff are refused.
// Platform admins are treated as owners. Call after JWT.
func RequireMember(roles RoleLookup, manage bool, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		role, ok := Authorize(c, roles, orgID, manage, logger)
		if !ok {
			return
		}
		c.Set(middleware.ContextOrganizationID, orgID)
		c.Set(middleware.ContextOrganizationRole, role)
		c.Next()
	}
}

// Authorize resolves the caller's role in orgID and writes the error response itself
// when access is refused. Shared with middleware that derives the organization from another resource.
func Authorize(c *gin.Context, roles RoleLookup, orgID uuid.UUID, manage bool, logger *zap.Logger) (string, bool) {
	if models.IsPlatformAdmin(c.GetString(middleware.ContextUserRole)) {
		return models.OrgRoleOwner, true
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, err := roles.GetUserRole(c.Request.Context(), orgID, userID)
	if err != nil {
		logger.Error("org role lookup failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to check organization access")
		c.Abort()
		return "", false
	}
	if role == "" {
		response.Forbidden(c, "not authorized for this organization")
		c.Abort()
		return "", false
	}
	if manage && !models.OrgRoleCanManage(role) {
		response.Forbidden(c, "organization manager role required")
		c.Abort()
		return "", false
	}
	return role, true
}
