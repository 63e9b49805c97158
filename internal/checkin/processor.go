package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/models"
)

// Store is the registration storage the processor needs. Lookups are scoped by organization.
type Store interface {
	// FindRegistrationByToken returns nil, nil when no registration in orgID holds token.
	FindRegistrationByToken(ctx context.Context, orgID uuid.UUID, token string) (*models.Registration, error)
	// ApplyCheckIn sets token_status, checked_in_at, checked_in_by and delivery_status in one
	// conditional write. It returns ErrCheckInConflict when the token is not active at apply time.
	ApplyCheckIn(ctx context.Context, orgID, registrationID uuid.UUID, checkedInBy string, at time.Time) (*models.Registration, error)
}

// ScanRecorder stores accepted scans.
type ScanRecorder interface {
	RecordScan(ctx context.Context, scan *models.CheckInScan) error
}

// Notifier is told about fresh check-ins (live dashboards).
type Notifier interface {
	CheckedIn(reg *models.Registration)
}

// Result is the outcome of a check-in attempt that was not rejected.
type Result struct {
	Success          bool                    `json:"success"`
	IdempotentReplay bool                    `json:"idempotent_replay"`
	Registration     models.RegistrationView `json:"registration"`
}

// Processor applies the check-in transition for presented tokens.
type Processor struct {
	store    Store
	scans    ScanRecorder
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewProcessor creates a check-in processor.
func NewProcessor(store Store, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: store, now: time.Now, logger: logger}
}

// SetScanRecorder sets where accepted scans are recorded.
func (p *Processor) SetScanRecorder(r ScanRecorder) { p.scans = r }

// SetNotifier sets the fresh check-in listener.
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// SetClock overrides the time source.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// Lookup validates the token and returns its registration without changing it.
func (p *Processor) Lookup(ctx context.Context, orgID uuid.UUID, token string) (*models.Registration, error) {
	if !IsValidTokenFormat(token) {
		return nil, ErrMalformedToken
	}
	reg, err := p.store.FindRegistrationByToken(ctx, orgID, strings.ToLower(token))
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg == nil {
		return nil, ErrTokenNotFound
	}
	return reg, nil
}

// Process checks in the registration holding token on behalf of checkedInBy.
// A token that was already used yields an idempotent replay carrying the original
// check-in time and identity; at most one concurrent caller observes a fresh check-in.
func (p *Processor) Process(ctx context.Context, orgID uuid.UUID, token, checkedInBy string) (*Result, error) {
	checkedInBy = strings.TrimSpace(checkedInBy)
	if checkedInBy == "" {
		return nil, ErrCheckerRequired
	}
	reg, err := p.Lookup(ctx, orgID, token)
	if err != nil {
		if IsInvalidCode(err) {
			p.logger.Debug("check-in rejected", zap.Error(err), zap.String("organization_id", orgID.String()))
		}
		return nil, err
	}
	if res, err := p.settled(ctx, reg, checkedInBy); res != nil || err != nil {
		return res, err
	}

	updated, err := p.store.ApplyCheckIn(ctx, orgID, reg.ID, checkedInBy, p.now().UTC())
	if errors.Is(err, ErrCheckInConflict) {
		// Lost the race to another scan, or the registration was cancelled meanwhile.
		current, ferr := p.Lookup(ctx, orgID, token)
		if ferr != nil {
			return nil, ferr
		}
		if res, err := p.settled(ctx, current, checkedInBy); res != nil || err != nil {
			return res, err
		}
		return nil, fmt.Errorf("registration %s: %w", reg.ID, ErrCheckInConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("apply check-in: %w", err)
	}

	p.recordScan(ctx, updated, checkedInBy, models.ScanOutcomeCheckedIn)
	if p.notifier != nil {
		p.notifier.CheckedIn(updated)
	}
	p.logger.Info("registration checked in",
		zap.String("registration_id", updated.ID.String()),
		zap.String("qr_code_set_id", updated.QRCodeSetID.String()),
		zap.String("checked_in_by", checkedInBy),
	)
	return &Result{Success: true, Registration: updated.View()}, nil
}

// settled resolves registrations whose token is no longer active. It returns nil, nil for active tokens.
func (p *Processor) settled(ctx context.Context, reg *models.Registration, scannedBy string) (*Result, error) {
	switch {
	case reg.TokenStatus == models.TokenUsed:
		p.recordScan(ctx, reg, scannedBy, models.ScanOutcomeReplay)
		p.logger.Debug("check-in replay", zap.String("registration_id", reg.ID.String()))
		return &Result{Success: true, IdempotentReplay: true, Registration: reg.View()}, nil
	case reg.TokenStatus != models.TokenActive, reg.DeliveryStatus == models.DeliveryCancelled:
		return nil, ErrTokenRevoked
	}
	return nil, nil
}

func (p *Processor) recordScan(ctx context.Context, reg *models.Registration, scannedBy, outcome string) {
	if p.scans == nil {
		return
	}
	scan := &models.CheckInScan{
		RegistrationID: reg.ID,
		QRCodeSetID:    reg.QRCodeSetID,
		ScannedBy:      scannedBy,
		Outcome:        outcome,
		ScannedAt:      p.now().UTC(),
	}
	if err := p.scans.RecordScan(ctx, scan); err != nil {
		p.logger.Warn("record scan failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}
