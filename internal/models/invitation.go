package models

import "time"

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// CanTransition reports whether from -> to is a legal move. Only pending
// has outgoing edges.
func CanTransition(from, to InvitationStatus) bool {
	if from != InvitationPending {
		return false
	}
	switch to {
	case InvitationAccepted, InvitationExpired, InvitationCancelled:
		return true
	}
	return false
}

// Invitation pre-authorises one registration
type Invitation struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Role        Role             `json:"role"`
	CompanyID   string           `json:"company_id"`
	InvitedBy   string           `json:"invited_by"`
	Status      InvitationStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	UserID      *string          `json:"user_id,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
	CancelledBy *string          `json:"cancelled_by,omitempty"`
}

// IsExpired reports whether the invitation deadline has passed at now
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationRequest is the payload for issuing an invitation
type InvitationRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}

// Registration is the payload for accepting an invitation
type Registration struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}
