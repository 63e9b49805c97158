package checkin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/pkg/response"
)

// Scan outcomes returned to scanning devices.
const (
	StatusCheckedIn        = "checked_in"
	StatusAlreadyCheckedIn = "already_checked_in"
)

// CheckInRequest is the body for POST /organizations/:id/check-ins.
type CheckInRequest struct {
	Token  string `json:"token" binding:"required"`
	Device string `json:"device"` // optional scanner label, appended to the staff identity
}

// CheckInResponse is what a scanning device shows.
type CheckInResponse struct {
	Status string `json:"status"`
	Result
}

// Handler exposes the processor over HTTP.
type Handler struct {
	processor *Processor
	logger    *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(processor *Processor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{processor: processor, logger: logger}
}

// CheckIn handles POST /organizations/:id/check-ins. Requires JWT and org membership.
func (h *Handler) CheckIn(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token required")
		return
	}

	res, err := h.processor.Process(c.Request.Context(), orgID, strings.TrimSpace(req.Token), checkerIdentity(c, req.Device))
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := StatusCheckedIn
	if res.IdempotentReplay {
		status = StatusAlreadyCheckedIn
	}
	response.OK(c, CheckInResponse{Status: status, Result: *res})
}

// Preview handles GET /organizations/:id/check-ins/:token. Shows the registration without checking in.
func (h *Handler) Preview(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	reg, err := h.processor.Lookup(c.Request.Context(), orgID, c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, reg.View())
}

// ValidateFormat handles GET /check-in/:token/validate. Format check only; storage is never read.
func (h *Handler) ValidateFormat(c *gin.Context) {
	response.OK(c, gin.H{"valid": IsValidTokenFormat(c.Param("token"))})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case IsInvalidCode(err):
		response.Error(c, http.StatusNotFound, response.CodeInvalidCode, "invalid code")
	case errors.Is(err, ErrTokenRevoked):
		response.Error(c, http.StatusConflict, response.CodeRegistrationVoid, "registration cancelled")
	case errors.Is(err, ErrCheckerRequired):
		response.BadRequest(c, "checked-in-by identity required")
	default:
		h.logger.Error("check-in failed", zap.Error(err))
		response.Internal(c, "check-in failed")
	}
}

// checkerIdentity is the staff email from the JWT (the user ID when the token has no email),
// suffixed with the device label when present. It is empty when the caller is unidentified.
func checkerIdentity(c *gin.Context, device string) string {
	id := strings.TrimSpace(c.GetString(middleware.ContextUserEmail))
	if id == "" {
		if v, ok := c.Get(middleware.ContextUserID); ok {
			if uid, _ := v.(uuid.UUID); uid != uuid.Nil {
				id = uid.String()
			}
		}
	}
	if id == "" {
		return ""
	}
	if device = strings.TrimSpace(device); device != "" {
		id += "/" + device
	}
	return id
}
