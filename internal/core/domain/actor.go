package domain

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
	RoleMerchant Role = "merchant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLecturer, RoleStudent, RoleMerchant:
		return true
	}
	return false
}

// Actor is the verified identity performing an operation.
type Actor struct {
	AccountID uuid.UUID `json:"account_id"`
	Role      Role      `json:"role"`
}
