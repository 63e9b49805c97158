package emaillogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListBySet handles GET /qr-code-sets/:id/emails.
// Call after RequireSetOrgAccess so access is already validated.
func (h *Handler) ListBySet(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	logs, err := h.repo.ListBySet(c.Request.Context(), setID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
