package registrations

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/checkin"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/response"
)

const tokenAttempts = 3

// Store is the registration storage the handler uses.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, setID, id uuid.UUID) (*models.Registration, error)
	ListBySet(ctx context.Context, setID uuid.UUID, f ListFilter) ([]*models.Registration, error)
	Cancel(ctx context.Context, setID, id uuid.UUID) (*models.Registration, error)
}

// Sets loads QR code sets and their entry points.
type Sets interface {
	GetSet(ctx context.Context, id uuid.UUID) (*models.QRCodeSet, error)
	GetCode(ctx context.Context, setID, codeID uuid.UUID) (*models.QRCode, error)
}

// Mailer queues outgoing email.
type Mailer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// SubmitRequest is the body for POST /qr-code-sets/:id/register.
type SubmitRequest struct {
	QRCodeID *string        `json:"qr_code_id"`
	Data     map[string]any `json:"data" binding:"required"` // field ID -> string, number or bool
}

// SubmitResponse is returned to the registrant.
type SubmitResponse struct {
	RegistrationID uuid.UUID             `json:"registration_id"`
	Token          string                `json:"token"`
	CheckInURL     string                `json:"check_in_url"`
	DeliveryStatus models.DeliveryStatus `json:"delivery_status"`
	EmailQueued    bool                  `json:"email_queued"`
}

// ResendRequest is the body for POST /qr-code-sets/:id/emails/resend.
type ResendRequest struct {
	RegistrationID string `json:"registration_id" binding:"required,uuid"`
	EmailType      string `json:"email_type"` // registration_confirmation (default) or check_in_reminder
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store  Store
	sets   Sets
	mailer Mailer
	tokens *checkin.TokenGenerator
	logger *zap.Logger
}

// NewHandler creates a registrations handler. mailer may be nil, in which case no email is queued.
func NewHandler(store Store, sets Sets, mailer Mailer, tokens *checkin.TokenGenerator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, sets: sets, mailer: mailer, tokens: tokens, logger: logger}
}

// Submit handles POST /qr-code-sets/:id/register (public). Validates the form, snapshots its schema,
// issues a check-in token and queues the confirmation email.
func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	setID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid qr code set id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	set, err := h.sets.GetSet(ctx, setID)
	if err != nil {
		h.logger.Error("load qr code set failed", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
		response.Internal(c, "failed to register")
		return
	}
	if set == nil || !set.IsActive {
		response.NotFound(c, "registration form not found")
		return
	}

	reg := &models.Registration{QRCodeSetID: setID, FormSchema: set.FormFields}
	if req.QRCodeID != nil && *req.QRCodeID != "" {
		codeID, err := uuid.Parse(*req.QRCodeID)
		if err != nil {
			response.BadRequest(c, "invalid qr_code_id")
			return
		}
		code, err := h.sets.GetCode(ctx, setID, codeID)
		if err != nil {
			h.logger.Error("load qr code failed", zap.Error(err))
			response.Internal(c, "failed to register")
			return
		}
		if code == nil {
			response.BadRequest(c, "qr code does not belong to this set")
			return
		}
		reg.QRCodeID = &code.ID
		reg.QRLabel = code.Label
	}

	data, err := ValidateSubmission(set.FormFields, req.Data)
	if err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid form data", "code": response.CodeValidation, "fields": fe})
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	reg.RegistrationData = data

	var token string
	for attempt := 1; ; attempt++ {
		token, err = h.tokens.Generate("")
		if err != nil {
			h.logger.Error("generate check-in token failed", zap.Error(err))
			response.Internal(c, "failed to register")
			return
		}
		reg.CheckInToken = &token
		err = h.store.Create(ctx, reg)
		if !errors.Is(err, ErrDuplicateToken) || attempt == tokenAttempts {
			break
		}
		h.logger.Warn("check-in token collision, regenerating", zap.Int("attempt", attempt))
	}
	if err != nil {
		h.logger.Error("create registration failed", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
		response.Internal(c, "failed to register")
		return
	}

	checkInURL := h.tokens.CheckInURL(token, "")
	queued := h.enqueue(ctx, reg, models.EmailTypeRegistrationConfirmation, checkInURL) == nil
	h.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("qr_code_set_id", setID.String()),
		zap.Bool("email_queued", queued))

	response.Created(c, SubmitResponse{
		RegistrationID: reg.ID,
		Token:          token,
		CheckInURL:     checkInURL,
		DeliveryStatus: reg.DeliveryStatus,
		EmailQueued:    queued,
	})
}

var errNoRecipient = errors.New("registration has no email")

func (h *Handler) enqueue(ctx context.Context, reg *models.Registration, emailType, checkInURL string) error {
	if h.mailer == nil {
		return errors.New("email queue not configured")
	}
	contact := models.ResolveContact(reg.FormSchema, reg.RegistrationData)
	if contact.Email == "" {
		return errNoRecipient
	}
	err := h.mailer.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		QRCodeSetID:    reg.QRCodeSetID,
		RegistrationID: reg.ID,
		RecipientEmail: contact.Email,
		RecipientName:  contact.Name,
		CheckInURL:     checkInURL,
	})
	if err != nil {
		h.logger.Error("enqueue email failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
	return err
}

// Get handles GET /qr-code-sets/:id/registrations/:registrationId.
func (h *Handler) Get(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.store.GetByID(c.Request.Context(), setID, id)
	if err != nil {
		h.logger.Error("get registration failed", zap.Error(err))
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	response.OK(c, gin.H{"registration": reg, "contact": reg.View().Contact})
}

// List handles GET /qr-code-sets/:id/registrations?status=&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	f := ListFilter{Status: models.DeliveryStatus(c.Query("status"))}
	switch f.Status {
	case "", models.DeliveryPending, models.DeliveryDelivered, models.DeliveryCheckedIn, models.DeliveryCancelled:
	default:
		response.BadRequest(c, "unknown status")
		return
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if f.Offset < 0 {
		f.Offset = 0
	}
	regs, err := h.store.ListBySet(c.Request.Context(), setID, f)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	views := make([]models.RegistrationView, len(regs))
	for i, r := range regs {
		views[i] = r.View()
	}
	response.OK(c, views)
}

// Cancel handles POST /qr-code-sets/:id/registrations/:registrationId/cancel. Requires manager role.
// The token is revoked together with the status change.
func (h *Handler) Cancel(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.store.Cancel(c.Request.Context(), setID, id)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "registration not found")
		return
	case errors.Is(err, ErrInvalidTransition):
		response.Error(c, http.StatusConflict, response.CodeInvalidTransition, "registration can no longer be cancelled")
		return
	case err != nil:
		h.logger.Error("cancel registration failed", zap.Error(err))
		response.Internal(c, "failed to cancel registration")
		return
	}
	h.logger.Info("registration cancelled", zap.String("registration_id", reg.ID.String()))
	response.OK(c, reg.View())
}

// Resend handles POST /qr-code-sets/:id/emails/resend. Requires manager role.
func (h *Handler) Resend(c *gin.Context) {
	setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registration_id required")
		return
	}
	emailType := strings.TrimSpace(req.EmailType)
	switch emailType {
	case "":
		emailType = models.EmailTypeRegistrationConfirmation
	case models.EmailTypeRegistrationConfirmation, models.EmailTypeCheckInReminder:
	default:
		response.BadRequest(c, "unknown email_type")
		return
	}
	reg, err := h.store.GetByID(c.Request.Context(), setID, uuid.MustParse(req.RegistrationID))
	if err != nil {
		h.logger.Error("get registration failed", zap.Error(err))
		response.Internal(c, "failed to resend")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if reg.DeliveryStatus.IsTerminal() || reg.CheckInToken == nil {
		response.Error(c, http.StatusConflict, response.CodeInvalidTransition, "registration is "+string(reg.DeliveryStatus))
		return
	}
	err = h.enqueue(c.Request.Context(), reg, emailType, h.tokens.CheckInURL(*reg.CheckInToken, ""))
	if errors.Is(err, errNoRecipient) {
		response.BadRequest(c, "registration has no email address")
		return
	}
	if err != nil {
		response.Internal(c, "failed to queue email")
		return
	}
	response.Accepted(c, gin.H{"registration_id": reg.ID, "email_type": emailType})
}
