package exports

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/response"
	"github.com/blessbox/backend/pkg/storage"
)

// Enqueuer queues export jobs.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) error
}

// Objects looks up finished exports.
type Objects interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	ExportsBucket() string
	PresignExpire() time.Duration
}

// Handler handles registration exports for a QR code set.
type Handler struct {
	queue   Enqueuer
	objects Objects
	logger  *zap.Logger
}

// NewHandler creates an exports handler.
func NewHandler(q Enqueuer, objects Objects, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: q, objects: objects, logger: logger}
}

// StatusResponse describes an export.
type StatusResponse struct {
	ExportID    string    `json:"export_id"`
	Status      string    `json:"status"` // pending or ready
	RequestedAt time.Time `json:"requested_at"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExpiresIn   int       `json:"expires_in,omitempty"` // seconds
}

// Create handles POST /qr-code-sets/:id/exports. Requires manager role.
func (h *Handler) Create(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	email, _ := c.Get(middleware.ContextUserEmail)
	requestedBy, _ := email.(string)

	exportID := storage.NewExportID()
	if err := h.queue.EnqueueExport(c.Request.Context(), queue.ExportPayload{
		ExportID:    exportID,
		QRCodeSetID: setID,
		RequestedBy: requestedBy,
	}); err != nil {
		h.logger.Error("enqueue export failed", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
		response.Internal(c, "failed to queue export")
		return
	}
	requestedAt, _ := storage.ExportCreatedAt(exportID)
	h.logger.Info("export queued", zap.String("export_id", exportID), zap.String("qr_code_set_id", setID.String()))
	response.Accepted(c, StatusResponse{ExportID: exportID, Status: "pending", RequestedAt: requestedAt})
}

// Get handles GET /qr-code-sets/:id/exports/:exportId. Returns a download URL once the worker has written the file.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	exportID := c.Param("exportId")

	key, err := storage.ExportKey(setID.String(), exportID)
	if errors.Is(err, storage.ErrInvalidExportID) {
		response.BadRequest(c, "invalid export id")
		return
	}
	requestedAt, _ := storage.ExportCreatedAt(exportID)

	bucket := h.objects.ExportsBucket()
	ok, err := h.objects.Exists(ctx, bucket, key)
	if err != nil {
		h.logger.Error("export lookup failed", zap.Error(err), zap.String("s3_key", key))
		response.Internal(c, "failed to load export")
		return
	}
	if !ok {
		response.Accepted(c, StatusResponse{ExportID: exportID, Status: "pending", RequestedAt: requestedAt})
		return
	}

	expires := h.objects.PresignExpire()
	url, err := h.objects.GeneratePresignedDownloadURL(ctx, bucket, key, expires)
	if err != nil {
		h.logger.Error("presign export failed", zap.Error(err), zap.String("s3_key", key))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, StatusResponse{
		ExportID:    exportID,
		Status:      "ready",
		RequestedAt: requestedAt,
		DownloadURL: url,
		ExpiresIn:   int(expires.Seconds()),
	})
}
