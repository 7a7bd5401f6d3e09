package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role is one of the three capability levels
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleCompanyAdmin Role = "company_admin"
	RoleWorker       Role = "worker"
)

// Valid reports whether r is a recognised role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleCompanyAdmin, RoleWorker:
		return true
	}
	return false
}

// SessionClaims are the claims carried by an access token
type SessionClaims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller
type Identity struct {
	Email     string `json:"email"`
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
}
