package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle stage of a registration.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCheckedIn DeliveryStatus = "checked-in"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// TokenStatus is the consumption state of a check-in token.
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenUsed    TokenStatus = "used"
	TokenRevoked TokenStatus = "revoked"
	// TokenExpired is representable in storage but nothing sets it.
	TokenExpired TokenStatus = "expired"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:   {DeliveryDelivered, DeliveryCheckedIn, DeliveryCancelled},
	DeliveryDelivered: {DeliveryCheckedIn, DeliveryCancelled},
}

// CanTransition reports whether a registration may move from one delivery status to another.
// checked-in and cancelled are terminal.
func CanTransition(from, to DeliveryStatus) bool {
	for _, s := range deliveryTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s DeliveryStatus) IsTerminal() bool {
	return len(deliveryTransitions[s]) == 0
}

// Registration is one form submission at a QR code entry point.
type Registration struct {
	ID               uuid.UUID         `json:"id"`
	QRCodeSetID      uuid.UUID         `json:"qr_code_set_id"`
	QRCodeID         *uuid.UUID        `json:"qr_code_id,omitempty"`
	QRLabel          string            `json:"qr_label,omitempty"`
	RegistrationData map[string]string `json:"registration_data"`
	FormSchema       []FormField       `json:"form_schema,omitempty"`
	DeliveryStatus   DeliveryStatus    `json:"delivery_status"`
	CheckInToken     *string           `json:"check_in_token,omitempty"`
	TokenStatus      TokenStatus       `json:"token_status"`
	CheckedInAt      *time.Time        `json:"checked_in_at,omitempty"`
	CheckedInBy      *string           `json:"checked_in_by,omitempty"`
	RegisteredAt     time.Time         `json:"registered_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsCheckedIn reports whether the check-in fields are set as a pair.
func (r *Registration) IsCheckedIn() bool {
	return r.CheckedInAt != nil && r.TokenStatus == TokenUsed
}

// CheckInPairConsistent reports whether checked_in_at and token_status agree.
func (r *Registration) CheckInPairConsistent() bool {
	return (r.CheckedInAt != nil) == (r.TokenStatus == TokenUsed)
}

// RegistrationView is a registration with contact fields resolved from its form schema.
type RegistrationView struct {
	ID             uuid.UUID      `json:"id"`
	QRCodeSetID    uuid.UUID      `json:"qr_code_set_id"`
	QRLabel        string         `json:"qr_label,omitempty"`
	Contact        Contact        `json:"contact"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	TokenStatus    TokenStatus    `json:"token_status"`
	CheckedInAt    *time.Time     `json:"checked_in_at,omitempty"`
	CheckedInBy    *string        `json:"checked_in_by,omitempty"`
	RegisteredAt   time.Time      `json:"registered_at"`
}

// View builds the public view of a registration.
func (r *Registration) View() RegistrationView {
	return RegistrationView{
		ID:             r.ID,
		QRCodeSetID:    r.QRCodeSetID,
		QRLabel:        r.QRLabel,
		Contact:        ResolveContact(r.FormSchema, r.RegistrationData),
		DeliveryStatus: r.DeliveryStatus,
		TokenStatus:    r.TokenStatus,
		CheckedInAt:    r.CheckedInAt,
		CheckedInBy:    r.CheckedInBy,
		RegisteredAt:   r.RegisteredAt,
	}
}
