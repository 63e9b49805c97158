package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan outcomes recorded for registrations that were found.
const (
	ScanOutcomeCheckedIn = "checked_in"
	ScanOutcomeReplay    = "already_checked_in"
)

// CheckInScan is one accepted scan of a registration's token.
type CheckInScan struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	QRCodeSetID    uuid.UUID `json:"qr_code_set_id"`
	ScannedBy      string    `json:"scanned_by"`
	Outcome        string    `json:"outcome"`
	ScannedAt      time.Time `json:"scanned_at"`
}
