package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/mailer"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/queue"
)

// DeliveryStore is the registration storage the delivery processor needs.
type DeliveryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// SetReader loads QR code sets.
type SetReader interface {
	GetSet(ctx context.Context, id uuid.UUID) (*models.QRCodeSet, error)
}

// EmailLogWriter records delivery attempts.
type EmailLogWriter interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// DeliveryProcessor sends registrant emails and moves pending registrations to delivered.
type DeliveryProcessor struct {
	regs   DeliveryStore
	sets   SetReader
	sender mailer.Sender
	logs   EmailLogWriter
	now    func() time.Time
	logger *zap.Logger
}

// NewDeliveryProcessor creates an email delivery processor.
func NewDeliveryProcessor(regs DeliveryStore, sets SetReader, sender mailer.Sender, logs EmailLogWriter, logger *zap.Logger) *DeliveryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryProcessor{regs: regs, sets: sets, sender: sender, logs: logs, now: time.Now, logger: logger}
}

// Process executes one email job. Jobs for cancelled or checked-in registrations are dropped.
func (p *DeliveryProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.regs.Get(ctx, payload.RegistrationID)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	if reg == nil || reg.DeliveryStatus.IsTerminal() {
		p.logger.Info("skipping email for closed registration",
			zap.String("registration_id", payload.RegistrationID.String()),
			zap.Bool("missing", reg == nil))
		return nil
	}
	set, err := p.sets.GetSet(ctx, reg.QRCodeSetID)
	if err != nil {
		return fmt.Errorf("load qr code set: %w", err)
	}
	eventName := "your event"
	if set != nil {
		eventName = set.Name
	}

	msg, err := mailer.Render(payload.EmailType, payload.RecipientEmail, mailer.TemplateData{
		Name:       payload.RecipientName,
		EventName:  eventName,
		CheckInURL: payload.CheckInURL,
	})
	if err != nil {
		return err
	}

	entry := &models.EmailLog{
		QRCodeSetID:    reg.QRCodeSetID,
		RegistrationID: reg.ID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        msg.Subject,
	}
	sendErr := p.sender.Send(ctx, msg)
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		at := p.now().UTC()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &at
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		p.logger.Warn("write email log failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
	if sendErr != nil {
		return fmt.Errorf("send email: %w", sendErr)
	}

	// The email is out; retrying the job would send it twice.
	changed, err := p.regs.MarkDelivered(ctx, reg.ID)
	if err != nil {
		p.logger.Warn("mark delivered failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		return nil
	}
	p.logger.Info("email delivered",
		zap.String("registration_id", reg.ID.String()),
		zap.String("email_type", payload.EmailType),
		zap.Bool("status_changed", changed))
	return nil
}
