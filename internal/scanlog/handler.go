package scanlog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/response"
)

// Handler handles GET /qr-code-sets/:id/scans.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a scan log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /qr-code-sets/:id/scans?limit=.
func (h *Handler) List(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListBySet(c.Request.Context(), setID, limit)
	if err != nil {
		h.logger.Error("list scans failed", zap.Error(err))
		response.Internal(c, "failed to list scans")
		return
	}
	response.OK(c, gin.H{"scans": list})
}
