package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/storage"
)

// ExportSource lists every registration of a set.
type ExportSource interface {
	ListAllBySet(ctx context.Context, setID uuid.UUID) ([]*models.Registration, error)
}

// ObjectStore uploads export documents.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	ExportsBucket() string
}

// ExportDocument is the JSON written to object storage.
type ExportDocument struct {
	ExportID      string             `json:"export_id"`
	QRCodeSetID   uuid.UUID          `json:"qr_code_set_id"`
	SetName       string             `json:"set_name"`
	RequestedBy   string             `json:"requested_by"`
	GeneratedAt   time.Time          `json:"generated_at"`
	FormFields    []models.FormField `json:"form_fields"`
	Registrations []ExportRow        `json:"registrations"`
}

// ExportRow is one registration in an export. Check-in tokens are left out.
type ExportRow struct {
	ID             uuid.UUID             `json:"id"`
	QRLabel        string                `json:"qr_label,omitempty"`
	Contact        models.Contact        `json:"contact"`
	Data           map[string]string     `json:"data"`
	DeliveryStatus models.DeliveryStatus `json:"delivery_status"`
	TokenStatus    models.TokenStatus    `json:"token_status"`
	CheckedInAt    *time.Time            `json:"checked_in_at,omitempty"`
	CheckedInBy    *string               `json:"checked_in_by,omitempty"`
	RegisteredAt   time.Time             `json:"registered_at"`
}

// ExportProcessor writes registration exports to object storage.
type ExportProcessor struct {
	regs   ExportSource
	sets   SetReader
	store  ObjectStore
	now    func() time.Time
	logger *zap.Logger
}

// NewExportProcessor creates an export processor.
func NewExportProcessor(regs ExportSource, sets SetReader, store ObjectStore, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{regs: regs, sets: sets, store: store, now: time.Now, logger: logger}
}

// BuildDocument assembles the export for a set.
func BuildDocument(exportID, requestedBy string, set *models.QRCodeSet, regs []*models.Registration, at time.Time) ExportDocument {
	doc := ExportDocument{
		ExportID:      exportID,
		QRCodeSetID:   set.ID,
		SetName:       set.Name,
		RequestedBy:   requestedBy,
		GeneratedAt:   at,
		FormFields:    set.FormFields,
		Registrations: make([]ExportRow, 0, len(regs)),
	}
	for _, r := range regs {
		doc.Registrations = append(doc.Registrations, ExportRow{
			ID:             r.ID,
			QRLabel:        r.QRLabel,
			Contact:        models.ResolveContact(r.FormSchema, r.RegistrationData),
			Data:           r.RegistrationData,
			DeliveryStatus: r.DeliveryStatus,
			TokenStatus:    r.TokenStatus,
			CheckedInAt:    r.CheckedInAt,
			CheckedInBy:    r.CheckedInBy,
			RegisteredAt:   r.RegisteredAt,
		})
	}
	return doc
}

// Process executes one export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	key, err := storage.ExportKey(payload.QRCodeSetID.String(), payload.ExportID)
	if err != nil {
		return err
	}
	set, err := p.sets.GetSet(ctx, payload.QRCodeSetID)
	if err != nil {
		return fmt.Errorf("load qr code set: %w", err)
	}
	if set == nil {
		p.logger.Warn("export for missing set dropped", zap.String("qr_code_set_id", payload.QRCodeSetID.String()))
		return nil
	}
	regs, err := p.regs.ListAllBySet(ctx, set.ID)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}

	body, err := json.MarshalIndent(BuildDocument(payload.ExportID, payload.RequestedBy, set, regs, p.now().UTC()), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := p.store.Upload(ctx, p.store.ExportsBucket(), key, "application/json", bytes.NewReader(body)); err != nil {
		return err
	}
	p.logger.Info("export written",
		zap.String("export_id", payload.ExportID),
		zap.String("s3_key", key),
		zap.Int("registrations", len(regs)))
	return nil
}
