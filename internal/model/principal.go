package model

import "github.com/google/uuid"

const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
	RoleViewer   = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsViewer() bool {
	return p.Role == RoleViewer
}

// CanEditContracts reports whether the principal may build and submit
// contracts.
func (p Principal) CanEditContracts() bool {
	return p.Role == RoleAdmin || p.Role == RoleOperator
}
