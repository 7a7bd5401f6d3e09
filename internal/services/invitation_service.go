package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/tenancy"
	"github.com/rs/zerolog/log"
)

const DefaultInvitationTTL = 7 * 24 * time.Hour

var (
	ErrInvitationExpired  = apperr.Validation("Invitation has expired")
	ErrNoInvitation       = apperr.Validation("No pending invitation found for this email")
	ErrInvitationMismatch = apperr.Validation("Registration does not match invitation")
	ErrNotPending         = apperr.Validation("Can only cancel pending invitations")
	ErrInvitationTaken    = apperr.Conflict("Invitation is no longer pending")
)

// InvitationService gates account creation behind admin issued invitations.
// Every status change is a conditional update on status=pending, so of
// two concurrent transitions exactly one wins.
type InvitationService struct {
	invitations *repository.InvitationRepository
	users       *repository.UserRepository
	companies   *repository.CompanyRepository
	audit       *AuditTrail
	notifier    Notifier
	ttl         time.Duration
	now         func() time.Time
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	invitations *repository.InvitationRepository,
	users *repository.UserRepository,
	companies *repository.CompanyRepository,
	audit *AuditTrail,
	notifier Notifier,
	ttl time.Duration,
) *InvitationService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		invitations: invitations,
		users:       users,
		companies:   companies,
		audit:       audit,
		notifier:    notifier,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Issue creates a pending invitation. All authorization and validation
// happens before the first write.
func (s *InvitationService) Issue(ctx context.Context, actor models.Identity, req models.InvitationRequest) (*models.Invitation, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("Name is required")
	}
	if !req.Role.Valid() {
		return nil, apperr.Validation("Invalid role")
	}
	companyID := strings.TrimSpace(req.CompanyID)
	if companyID == "" {
		companyID = actor.CompanyID
	}
	if err := tenancy.AuthorizeTenant(actor, companyID); err != nil {
		return nil, apperr.Authorization("Cannot invite users to other companies")
	}
	if !auth.CanAssign(actor, req.Role) {
		return nil, apperr.Authorization("Cannot assign role " + string(req.Role))
	}

	// Existence checks and the insert are separate round trips. A unique
	// constraint on pending invitations, if the store has one, turns a lost
	// race into a conflict; otherwise two pending rows may result.
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("User with this email already exists")
	}
	if _, err := s.invitations.FindPending(ctx, email); err == nil {
		return nil, apperr.Conflict("Pending invitation already exists for this email")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if _, err := s.companies.FindByID(ctx, companyID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("Company not found")
		}
		return nil, err
	}

	now := s.now().UTC()
	inv, err := s.invitations.Create(ctx, &models.Invitation{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      req.Role,
		CompanyID: companyID,
		InvitedBy: actor.UserID,
		Status:    models.InvitationPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: companyID, Action: "invitation.issue", ResourceType: "invitation", ResourceID: inv.ID, Detail: email})
	notify(s.notifier, companyID, "invitation_created", inv)
	return inv, nil
}

// Accept registers the invited account. An expired invitation is moved to
// expired and the registration rejected; a payload that disagrees with the
// invitation is rejected without any transition.
func (s *InvitationService) Accept(ctx context.Context, reg models.Registration) (*models.User, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(reg.Password); err != nil {
		return nil, err
	}

	inv, err := s.invitations.FindPending(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrNoInvitation
		}
		return nil, err
	}

	if inv.IsExpired(s.now()) {
		if _, _, err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationExpired, nil); err != nil {
			log.Error().Err(err).Str("invitation_id", inv.ID).Msg("Failed to mark invitation expired")
		}
		s.audit.Record(ctx, AuditEntry{CompanyID: inv.CompanyID, Action: "invitation.expire", ResourceType: "invitation", ResourceID: inv.ID, Detail: email})
		return nil, ErrInvitationExpired
	}

	if reg.Role != inv.Role || strings.TrimSpace(reg.CompanyID) != inv.CompanyID {
		s.audit.Record(ctx, AuditEntry{CompanyID: inv.CompanyID, Action: "invitation.accept", ResourceType: "invitation", ResourceID: inv.ID, Failed: true, Detail: "payload mismatch"})
		return nil, ErrInvitationMismatch
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "Invalid password", err)
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = inv.Name
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		CompanyID:    inv.CompanyID,
		Role:         inv.Role,
		Status:       models.UserActive,
		PasswordHash: hash,
		InvitedBy:    inv.InvitedBy,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	_, won, err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationAccepted, map[string]any{
		"accepted_at": now,
		"user_id":     user.ID,
	})
	if err != nil || !won {
		// Another request consumed the invitation first; undo our account.
		if rmErr := s.users.Remove(ctx, user.ID); rmErr != nil {
			log.Error().Err(rmErr).Str("user_id", user.ID).Msg("Failed to roll back user after lost invitation race")
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrInvitationTaken
	}

	s.audit.Record(ctx, AuditEntry{Actor: user.Identity(), Action: "invitation.accept", ResourceType: "invitation", ResourceID: inv.ID})
	notify(s.notifier, user.CompanyID, "user_registered", user.Public())
	return user, nil
}

// Cancel moves a pending invitation to cancelled
func (s *InvitationService) Cancel(ctx context.Context, actor models.Identity, id string) error {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return apperr.Authorization("Insufficient permissions")
	}

	inv, err := s.invitations.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if inv.Status.Terminal() {
		return ErrNotPending
	}

	_, won, err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationCancelled, map[string]any{
		"cancelled_at": s.now().UTC(),
		"cancelled_by": actor.UserID,
	})
	if err != nil {
		return err
	}
	if !won {
		return ErrNotPending
	}

	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: inv.CompanyID, Action: "invitation.cancel", ResourceType: "invitation", ResourceID: inv.ID})
	notify(s.notifier, inv.CompanyID, "invitation_cancelled", map[string]string{"id": inv.ID})
	return nil
}

// List returns the invitations visible to actor
func (s *InvitationService) List(ctx context.Context, actor models.Identity, status models.InvitationStatus, offset, limit int) ([]models.Invitation, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}
	switch status {
	case "", models.InvitationPending, models.InvitationAccepted, models.InvitationExpired, models.InvitationCancelled:
	default:
		return nil, apperr.Validation("Invalid status filter")
	}
	return s.invitations.List(ctx, actor, status, offset, clampLimit(limit))
}

// Get returns one invitation visible to actor
func (s *InvitationService) Get(ctx context.Context, actor models.Identity, id string) (*models.Invitation, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}
	return s.invitations.Get(ctx, actor, id)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Invalid email address")
	}
	return email, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
