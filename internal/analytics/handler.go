package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/internal/registrations"
	"github.com/blessbox/backend/internal/scanlog"
	"github.com/blessbox/backend/pkg/response"
)

// StatusCounter counts registrations per delivery status.
type StatusCounter interface {
	CountsBySet(ctx context.Context, setID uuid.UUID) (registrations.StatusCounts, error)
}

// ScanAggregator summarizes scans.
type ScanAggregator interface {
	GetAggregates(ctx context.Context, setID uuid.UUID) (*scanlog.Aggregates, error)
}

// Handler handles GET /qr-code-sets/:id/stats.
type Handler struct {
	counts StatusCounter
	scans  ScanAggregator
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(counts StatusCounter, scans ScanAggregator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{counts: counts, scans: scans, logger: logger}
}

// SummaryResponse is the JSON shape for set statistics.
type SummaryResponse struct {
	TotalRegistrations int                `json:"total_registrations"`
	Pending            int                `json:"pending"`
	Delivered          int                `json:"delivered"`
	CheckedIn          int                `json:"checked_in"`
	Cancelled          int                `json:"cancelled"`
	CheckInRate        float64            `json:"check_in_rate"` // checked in / non-cancelled
	Scans              scanlog.Aggregates `json:"scans"`
}

// Summarize derives totals and the check-in rate from per-status counts.
func Summarize(counts registrations.StatusCounts) SummaryResponse {
	out := SummaryResponse{
		Pending:   counts[models.DeliveryPending],
		Delivered: counts[models.DeliveryDelivered],
		CheckedIn: counts[models.DeliveryCheckedIn],
		Cancelled: counts[models.DeliveryCancelled],
	}
	out.TotalRegistrations = out.Pending + out.Delivered + out.CheckedIn + out.Cancelled
	if live := out.TotalRegistrations - out.Cancelled; live > 0 {
		out.CheckInRate = float64(out.CheckedIn) / float64(live)
	}
	return out
}

// GetBySet handles GET /qr-code-sets/:id/stats. Org access is enforced by route middleware.
func (h *Handler) GetBySet(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	ctx := c.Request.Context()

	counts, err := h.counts.CountsBySet(ctx, setID)
	if err != nil {
		h.logger.Error("registration counts failed", zap.Error(err))
		response.Internal(c, "failed to load registration counts")
		return
	}
	out := Summarize(counts)

	if h.scans != nil {
		agg, err := h.scans.GetAggregates(ctx, setID)
		if err != nil {
			h.logger.Error("scan aggregates failed", zap.Error(err))
			response.Internal(c, "failed to load scan aggregates")
			return
		}
		out.Scans = *agg
	}
	response.OK(c, out)
}
