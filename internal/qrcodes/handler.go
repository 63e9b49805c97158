package qrcodes

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/response"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a label into a URL-safe slug.
func Slugify(label string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "-"), "-")
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s
}

// CreateSetRequest is the body for POST /organizations/:id/qr-code-sets.
type CreateSetRequest struct {
	Name       string             `json:"name" binding:"required"`
	Language   string             `json:"language"`
	FormFields []models.FormField `json:"form_fields" binding:"required"`
}

// UpdateSetRequest is the body for PATCH /qr-code-sets/:id.
type UpdateSetRequest struct {
	Name       *string            `json:"name"`
	Language   *string            `json:"language"`
	FormFields []models.FormField `json:"form_fields"`
	IsActive   *bool              `json:"is_active"`
}

// AddCodeRequest is the body for POST /qr-code-sets/:id/codes.
type AddCodeRequest struct {
	Label string `json:"label" binding:"required"`
}

// PublicForm is what registrants see when they open a QR code.
type PublicForm struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name"`
	Language   string             `json:"language"`
	FormFields []models.FormField `json:"form_fields"`
	QRCodes    []models.QRCode    `json:"qr_codes"`
}

// Handler handles QR code set endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a QR code handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateSet handles POST /organizations/:id/qr-code-sets. Requires manager role.
func (h *Handler) CreateSet(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := models.ValidateFormFields(req.FormFields); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = "en"
	}
	set := &models.QRCodeSet{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Language:       lang,
		FormFields:     req.FormFields,
		IsActive:       true,
		CreatedBy:      userID,
	}
	if err := h.repo.CreateSet(c.Request.Context(), set); err != nil {
		h.logger.Error("create qr code set failed", zap.Error(err))
		response.Internal(c, "failed to create qr code set")
		return
	}
	response.Created(c, set)
}

// ListSets handles GET /organizations/:id/qr-code-sets.
func (h *Handler) ListSets(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	sets, err := h.repo.ListSets(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list qr code sets failed", zap.Error(err))
		response.Internal(c, "failed to list qr code sets")
		return
	}
	response.OK(c, sets)
}

// GetSet handles GET /qr-code-sets/:id.
func (h *Handler) GetSet(c *gin.Context) {
	setID := c.MustGet(ContextQRCodeSetID).(uuid.UUID)
	set, err := h.repo.GetSet(c.Request.Context(), setID)
	if err != nil || set == nil {
		response.NotFound(c, "qr code set not found")
		return
	}
	response.OK(c, set)
}

// UpdateSet handles PATCH /qr-code-sets/:id. Requires manager role.
func (h *Handler) UpdateSet(c *gin.Context) {
	setID := c.MustGet(ContextQRCodeSetID).(uuid.UUID)
	var req UpdateSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	set, err := h.repo.GetSet(c.Request.Context(), setID)
	if err != nil || set == nil {
		response.NotFound(c, "qr code set not found")
		return
	}
	if req.Name != nil {
		set.Name = strings.TrimSpace(*req.Name)
	}
	if req.Language != nil {
		set.Language = strings.TrimSpace(*req.Language)
	}
	if req.FormFields != nil {
		if err := models.ValidateFormFields(req.FormFields); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
			return
		}
		set.FormFields = req.FormFields
	}
	if req.IsActive != nil {
		set.IsActive = *req.IsActive
	}
	if err := h.repo.UpdateSet(c.Request.Context(), set); err != nil {
		h.logger.Error("update qr code set failed", zap.Error(err))
		response.Internal(c, "failed to update qr code set")
		return
	}
	response.OK(c, set)
}

// AddCode handles POST /qr-code-sets/:id/codes. Requires manager role.
func (h *Handler) AddCode(c *gin.Context) {
	setID := c.MustGet(ContextQRCodeSetID).(uuid.UUID)
	var req AddCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "label required")
		return
	}
	label := strings.TrimSpace(req.Label)
	slug := Slugify(label)
	if slug == "" {
		response.BadRequest(c, "label must contain letters or digits")
		return
	}
	code := &models.QRCode{QRCodeSetID: setID, Label: label, Slug: slug}
	if err := h.repo.AddCode(c.Request.Context(), code); err != nil {
		h.logger.Error("add qr code failed", zap.Error(err))
		response.Internal(c, "failed to add qr code")
		return
	}
	response.Created(c, code)
}

// ListCodes handles GET /qr-code-sets/:id/codes.
func (h *Handler) ListCodes(c *gin.Context) {
	setID := c.MustGet(ContextQRCodeSetID).(uuid.UUID)
	codes, err := h.repo.ListCodes(c.Request.Context(), setID)
	if err != nil {
		h.logger.Error("list qr codes failed", zap.Error(err))
		response.Internal(c, "failed to list qr codes")
		return
	}
	response.OK(c, codes)
}

// PublicForm handles GET /qr-code-sets/:id/form (public). Inactive sets are hidden.
func (h *Handler) PublicForm(c *gin.Context) {
	setID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid qr code set id")
		return
	}
	set, err := h.repo.GetSet(c.Request.Context(), setID)
	if err != nil {
		h.logger.Error("load form failed", zap.Error(err))
		response.Internal(c, "failed to load form")
		return
	}
	if set == nil || !set.IsActive {
		response.NotFound(c, "registration form not found")
		return
	}
	codes, err := h.repo.ListCodes(c.Request.Context(), setID)
	if err != nil {
		h.logger.Error("list qr codes failed", zap.Error(err))
		response.Internal(c, "failed to load form")
		return
	}
	response.OK(c, PublicForm{ID: set.ID, Name: set.Name, Language: set.Language, FormFields: set.FormFields, QRCodes: codes})
}
