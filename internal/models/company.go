package models

import "time"

type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanyInactive  CompanyStatus = "inactive"
	CompanySuspended CompanyStatus = "suspended"
	CompanyTrial     CompanyStatus = "trial"
)

// Valid reports whether s is a recognised company status
func (s CompanyStatus) Valid() bool {
	switch s {
	case CompanyActive, CompanyInactive, CompanySuspended, CompanyTrial:
		return true
	}
	return false
}

// Company is a tenant
type Company struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ContactEmail string        `json:"contact_email,omitempty"`
	ContactPhone string        `json:"contact_phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	Status       CompanyStatus `json:"status"`
	CreatedBy    string        `json:"created_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    *time.Time    `json:"updated_at,omitempty"`
}

// CompanyRequest is the payload for creating a company
type CompanyRequest struct {
	Name         string        `json:"name"`
	ContactEmail string        `json:"contact_email"`
	ContactPhone string        `json:"contact_phone"`
	Address      string        `json:"address"`
	Status       CompanyStatus `json:"status"`
}

// CompanyWithUsers is a company and its accounts
type CompanyWithUsers struct {
	Company
	Users []User `json:"users"`
}

// CompanyUpdate holds optional company changes
type CompanyUpdate struct {
	Name         *string        `json:"name,omitempty"`
	ContactEmail *string        `json:"contact_email,omitempty"`
	ContactPhone *string        `json:"contact_phone,omitempty"`
	Address      *string        `json:"address,omitempty"`
	Status       *CompanyStatus `json:"status,omitempty"`
}
