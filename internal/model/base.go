package model

import "github.com/google/uuid"

type Role string

const (
	RolePatient     Role = "PATIENT"
	RoleDoctor      Role = "DOCTOR"
	RoleAdmin       Role = "ADMIN"
	RoleMasterAdmin Role = "MASTER_ADMIN"
)

// IsAdmin covers both hospital admins and the master admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleMasterAdmin
}

// Principal is the caller identity extracted from a verified bearer token.
type Principal struct {
	UserID     uuid.UUID `json:"userId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	HospitalID uuid.UUID `json:"hospitalId"`
}
