package models

import (
	"time"

	"github.com/google/uuid"
)

// QRCodeSet groups the entry points of one event and owns its registration form.
type QRCodeSet struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	Language       string      `json:"language"`
	FormFields     []FormField `json:"form_fields"`
	IsActive       bool        `json:"is_active"`
	CreatedBy      uuid.UUID   `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// QRCode is a named scan target that opens the set's registration form.
type QRCode struct {
	ID          uuid.UUID `json:"id"`
	QRCodeSetID uuid.UUID `json:"qr_code_set_id"`
	Label       string    `json:"label"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
}
