package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Every QR code set and registration belongs to exactly one.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization member roles.
const (
	OrgRoleOwner   = "owner"
	OrgRoleManager = "manager"
	OrgRoleStaff   = "staff"
)

// OrgRoleCanManage reports whether the role may edit QR code sets and registrations.
// Staff may only scan.
func OrgRoleCanManage(role string) bool {
	return role == OrgRoleOwner || role == OrgRoleManager
}

// OrganizationUser links a user to an organization with a role.
type OrganizationUser struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
