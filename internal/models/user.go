package models

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

// Valid reports whether s is a recognised user status
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended:
		return true
	}
	return false
}

// User is a persisted account. PasswordHash never leaves the service.
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	CompanyID             string     `json:"company_id"`
	Role                  Role       `json:"role"`
	Status                UserStatus `json:"status"`
	PasswordHash          string     `json:"hashed_password,omitempty"`
	PasswordResetRequired bool       `json:"password_reset_required"`
	InvitedBy             string     `json:"invited_by,omitempty"`
	LastLogin             *time.Time `json:"last_login,omitempty"`
	RegistrationIP        string     `json:"registration_ip,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

// Identity derives the caller identity from the persisted record
func (u *User) Identity() Identity {
	return Identity{
		Email:     u.Email,
		UserID:    u.ID,
		CompanyID: u.CompanyID,
		Name:      u.Name,
		Role:      u.Role,
	}
}

// Public returns a copy safe to serialise
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UserUpdate holds optional user changes
type UserUpdate struct {
	Name      *string     `json:"name,omitempty"`
	Role      *Role       `json:"role,omitempty"`
	Status    *UserStatus `json:"status,omitempty"`
	CompanyID *string     `json:"company_id,omitempty"`
}
