package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent to registrants.
const (
	EmailTypeRegistrationConfirmation = "registration_confirmation"
	EmailTypeCheckInReminder          = "check_in_reminder"
)

// EmailLog delivery states.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records one delivery attempt to a registrant.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	QRCodeSetID    uuid.UUID  `json:"qr_code_set_id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
