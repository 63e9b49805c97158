package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2-64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   *Repository
	users  UserFinder
	logger *zap.Logger
}

// UserFinder looks up staff accounts by email; nil, nil when none.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, users UserFinder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, users: users, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=owner manager staff"`
}

// CreateOrganization handles POST /organizations. Creates org and adds current user as owner.
func (h *Handler) CreateOrganization(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug}
	if err := h.repo.Create(c.Request.Context(), org, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// ListMyOrganizations handles GET /organizations.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.repo.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /organizations/:id/members. Requires membership.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/members. Requires manager role; only owners grant owner.
func (h *Handler) AddMember(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email and role (owner, manager, staff) required")
		return
	}
	if body.Role == models.OrgRoleOwner && c.GetString(middleware.ContextOrganizationRole) != models.OrgRoleOwner {
		response.Forbidden(c, "only owners can add owners")
		return
	}
	user, err := h.users.GetByEmail(c.Request.Context(), strings.TrimSpace(body.Email))
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	if user == nil {
		response.NotFound(c, "no account with that email")
		return
	}
	if err := h.repo.AddUser(c.Request.Context(), orgID, user.ID, body.Role); err != nil {
		h.logger.Error("add member failed", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	response.OK(c, gin.H{"user_id": user.ID, "role": body.Role})
}
