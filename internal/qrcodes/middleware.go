package qrcodes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/organizations"
	"github.com/blessbox/backend/pkg/response"
)

// ContextQRCodeSetID is the context key for the set (uuid.UUID) in the :id path param.
const ContextQRCodeSetID = "qr_code_set_id"

// SetOwner resolves the organization that owns a set.
type SetOwner interface {
	GetOrganizationID(ctx context.Context, setID uuid.UUID) (uuid.UUID, bool, error)
}

// RequireSetOrgAccess validates that the caller belongs to the organization owning the set in :id.
// Call after JWT. With manage set, scan-only staff are refused.
func RequireSetOrgAccess(sets SetOwner, roles organizations.RoleLookup, manage bool, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		setID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid qr code set id")
			c.Abort()
			return
		}
		orgID, ok, err := sets.GetOrganizationID(c.Request.Context(), setID)
		if err != nil {
			logger.Error("set lookup failed", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
			response.Internal(c, "failed to load qr code set")
			c.Abort()
			return
		}
		if !ok {
			response.NotFound(c, "qr code set not found")
			c.Abort()
			return
		}
		role, ok := organizations.Authorize(c, roles, orgID, manage, logger)
		if !ok {
			return
		}
		c.Set(ContextQRCodeSetID, setID)
		c.Set(middleware.ContextOrganizationID, orgID)
		c.Set(middleware.ContextOrganizationRole, role)
		c.Next()
	}
}
