package services

import (
	"context"
	"strings"
	"time"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/session"
	"github.com/otcheredev/roadservice-api/internal/tenancy"
	"github.com/rs/zerolog/log"
)

// UserService manages accounts within the caller's tenant scope
type UserService struct {
	users    *repository.UserRepository
	sessions *session.Store
	audit    *AuditTrail
	notifier Notifier
}

// NewUserService creates a new user service
func NewUserService(users *repository.UserRepository, sessions *session.Store, audit *AuditTrail, notifier Notifier) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		audit:    audit,
		notifier: notifier,
	}
}

// ResetResult carries the temporary password of an admin reset
type ResetResult struct {
	UserID            string `json:"user_id"`
	TemporaryPassword string `json:"temporary_password"`
}

func (s *UserService) List(ctx context.Context, actor models.Identity, offset, limit int) ([]models.User, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}
	users, err := s.users.List(ctx, actor, offset, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, actor models.Identity, id string) (*models.User, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) && actor.UserID != id {
		return nil, apperr.Authorization("Insufficient permissions")
	}
	user, err := s.users.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

// Update applies patch to a user in the actor's scope. Roles can only be
// granted up to what the actor may assign and users never change tenant.
func (s *UserService) Update(ctx context.Context, actor models.Identity, id string, patch models.UserUpdate) (*models.User, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}

	if patch.CompanyID != nil {
		if err := tenancy.AuthorizeTenant(actor, *patch.CompanyID); err != nil {
			return nil, err
		}
	}

	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("Name cannot be empty")
		}
		fields["name"] = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, apperr.Validation("Invalid role")
		}
		if !auth.CanAssign(actor, *patch.Role) {
			return nil, apperr.Authorization("Cannot assign role " + string(*patch.Role))
		}
		fields["role"] = string(*patch.Role)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.Validation("Invalid status")
		}
		if id == actor.UserID && *patch.Status != models.UserActive {
			return nil, apperr.Validation("Cannot deactivate your own account")
		}
		fields["status"] = string(*patch.Status)
	}

	target, err := s.users.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.AtLeast(actor, target.Role) {
		return nil, apperr.Authorization("Cannot modify a user with a higher role")
	}
	if patch.CompanyID != nil && *patch.CompanyID != target.CompanyID {
		return nil, apperr.Authorization("Cannot move users between companies")
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("No fields to update")
	}

	fields["updated_at"] = time.Now().UTC()
	user, err := s.users.Update(ctx, actor, id, fields)
	if err != nil {
		return nil, err
	}

	if user.Status != models.UserActive || patch.Role != nil {
		s.revoke(ctx, user.ID)
	}
	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: user.CompanyID, Action: "user.update", ResourceType: "user", ResourceID: user.ID})
	pub := user.Public()
	notify(s.notifier, user.CompanyID, "user_updated", pub)
	return &pub, nil
}

// Delete removes a user in the actor's scope
func (s *UserService) Delete(ctx context.Context, actor models.Identity, id string) error {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return apperr.Authorization("Insufficient permissions")
	}
	if id == actor.UserID {
		return apperr.Validation("Cannot delete your own account")
	}

	target, err := s.users.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !auth.AtLeast(actor, target.Role) {
		return apperr.Authorization("Cannot delete a user with a higher role")
	}
	if err := s.users.Delete(ctx, actor, id); err != nil {
		return err
	}

	s.revoke(ctx, id)
	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: target.CompanyID, Action: "user.delete", ResourceType: "user", ResourceID: id})
	notify(s.notifier, target.CompanyID, "user_deleted", map[string]string{"id": id})
	return nil
}

// ResetPassword sets a temporary password that must be changed on next login
func (s *UserService) ResetPassword(ctx context.Context, actor models.Identity, id string) (*ResetResult, error) {
	if !auth.AtLeast(actor, models.RoleCompanyAdmin) {
		return nil, apperr.Authorization("Insufficient permissions")
	}
	target, err := s.users.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.AtLeast(actor, target.Role) {
		return nil, apperr.Authorization("Cannot reset the password of a user with a higher role")
	}

	temp, err := auth.TemporaryPassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(temp)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Update(ctx, actor, id, map[string]any{
		"hashed_password":         hash,
		"password_reset_required": true,
		"updated_at":              time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.revoke(ctx, id)
	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: target.CompanyID, Action: "user.reset_password", ResourceType: "user", ResourceID: id})
	return &ResetResult{UserID: id, TemporaryPassword: temp}, nil
}

func (s *UserService) revoke(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to revoke sessions")
	}
}
