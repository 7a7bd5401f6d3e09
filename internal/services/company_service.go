package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
)

// CompanyService manages tenants. Everything except MyCompany requires
// super_admin. Companies are never deleted so every user keeps a tenant.
type CompanyService struct {
	companies *repository.CompanyRepository
	users     *repository.UserRepository
	audit     *AuditTrail
}

func NewCompanyService(companies *repository.CompanyRepository, users *repository.UserRepository, audit *AuditTrail) *CompanyService {
	return &CompanyService{companies: companies, users: users, audit: audit}
}

// Stats summarises tenants and accounts
type Stats struct {
	Companies   int                 `json:"companies"`
	Users       int                 `json:"users"`
	UsersByRole map[models.Role]int `json:"users_by_role"`
}

func requireSuperAdmin(actor models.Identity) error {
	if !auth.IsSuperAdmin(actor) {
		return apperr.Authorization("Super admin access required")
	}
	return nil
}

// Create registers a new tenant. The name check and the insert are two
// round trips; a unique constraint on name in the store closes the gap,
// otherwise concurrent creates can both succeed.
func (s *CompanyService) Create(ctx context.Context, actor models.Identity, req models.CompanyRequest) (*models.Company, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("Company name is required")
	}
	if req.ContactEmail != "" {
		if _, err := mail.ParseAddress(req.ContactEmail); err != nil {
			return nil, apperr.Validation("Invalid contact email")
		}
	}
	status := req.Status
	if status == "" {
		status = models.CompanyActive
	}
	if !status.Valid() {
		return nil, apperr.Validation("Invalid company status")
	}

	exists, err := s.companies.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("Company with this name already exists")
	}

	now := time.Now().UTC()
	company, err := s.companies.Create(ctx, &models.Company{
		ID:           uuid.NewString(),
		Name:         name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
		Status:       status,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    &now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: company.ID, Action: "company.create", ResourceType: "company", ResourceID: company.ID})
	return company, nil
}

func (s *CompanyService) List(ctx context.Context, actor models.Identity, offset, limit int) ([]models.Company, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.companies.List(ctx, offset, clampLimit(limit))
}

// Get returns a company together with its users
func (s *CompanyService) Get(ctx context.Context, actor models.Identity, id string) (*models.CompanyWithUsers, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return &models.CompanyWithUsers{Company: *company, Users: users}, nil
}

func (s *CompanyService) Update(ctx context.Context, actor models.Identity, id string, patch models.CompanyUpdate) (*models.Company, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("Company name cannot be empty")
		}
		fields["name"] = name
	}
	if patch.ContactEmail != nil {
		if _, err := mail.ParseAddress(*patch.ContactEmail); err != nil {
			return nil, apperr.Validation("Invalid contact email")
		}
		fields["contact_email"] = *patch.ContactEmail
	}
	if patch.ContactPhone != nil {
		fields["contact_phone"] = *patch.ContactPhone
	}
	if patch.Address != nil {
		fields["address"] = *patch.Address
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.Validation("Invalid company status")
		}
		fields["status"] = string(*patch.Status)
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("No fields to update")
	}

	if _, err := s.companies.FindByID(ctx, id); err != nil {
		return nil, err
	}
	fields["updated_at"] = time.Now().UTC()
	company, err := s.companies.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{Actor: actor, CompanyID: id, Action: "company.update", ResourceType: "company", ResourceID: id})
	return company, nil
}

// MyCompany returns the caller's own tenant
func (s *CompanyService) MyCompany(ctx context.Context, actor models.Identity) (*models.Company, error) {
	if actor.CompanyID == "" {
		return nil, apperr.NotFound("Company not found")
	}
	return s.companies.FindByID(ctx, actor.CompanyID)
}

// Stats counts companies and users across the system
func (s *CompanyService) Stats(ctx context.Context, actor models.Identity) (*Stats, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	companies, err := s.companies.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Companies: len(companies), UsersByRole: map[models.Role]int{}}
	for _, role := range []models.Role{models.RoleSuperAdmin, models.RoleCompanyAdmin, models.RoleWorker} {
		n, err := s.users.CountByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		stats.UsersByRole[role] = n
		stats.Users += n
	}
	return stats, nil
}
