package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/blessbox/backend/internal/auth"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/internal/organizations"
	"github.com/blessbox/backend/internal/qrcodes"
)

// NewFeedAuthorizer checks the staff JWT and membership in the organization owning the set.
// Any member role may watch.
func NewFeedAuthorizer(jwt *auth.JWTService, sets qrcodes.SetOwner, roles organizations.RoleLookup) AuthorizeFunc {
	return func(ctx context.Context, token string, setID uuid.UUID) (uuid.UUID, error) {
		claims, err := jwt.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		if models.IsPlatformAdmin(claims.Role) {
			return claims.UserID, nil
		}
		orgID, ok, err := sets.GetOrganizationID(ctx, setID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("load set: %w", err)
		}
		if !ok {
			return uuid.Nil, ErrForbidden
		}
		member, err := roles.GetUserRole(ctx, orgID, claims.UserID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("load role: %w", err)
		}
		if models.EffectiveOrgRole(claims.Role, member) == "" {
			return uuid.Nil, ErrForbidden
		}
		return claims.UserID, nil
	}
}
