package model

import "time"

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleViewer        Role = "viewer"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Capability names an admin permission checked by middleware.
type Capability string

const CapManageOptions Capability = "manage_options"

var roleCapabilities = map[Role][]Capability{
	RoleAdministrator: {CapManageOptions},
}

// Can reports whether the role grants cap.
func (r Role) Can(cap Capability) bool {
	for _, c := range roleCapabilities[r] {
		if c == cap {
			return true
		}
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleViewer
}

type AdminUser struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}
