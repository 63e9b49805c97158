package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a platform-wide user role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// IsPlatformAdmin reports whether role grants owner access to every organization.
func IsPlatformAdmin(role string) bool { return Role(role) == RoleAdmin }

// EffectiveOrgRole is the organization role a user acts with. Platform admins act as owners
// whether or not they are members; everyone else gets memberRole, "" meaning no access.
func EffectiveOrgRole(platformRole, memberRole string) string {
	if IsPlatformAdmin(platformRole) {
		return OrgRoleOwner
	}
	return memberRole
}

// User is a staff account that manages or scans for organizations.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without the password hash.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
