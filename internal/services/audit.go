package services

import (
	"context"
	"time"

	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuditTrail records security relevant actions. Entries are always logged;
// they are also persisted when an audit repository is configured.
type AuditTrail struct {
	repo *repository.AuditRepository
}

// NewAuditTrail creates an audit trail. repo may be nil.
func NewAuditTrail(repo *repository.AuditRepository) *AuditTrail {
	return &AuditTrail{repo: repo}
}

// AuditEntry describes one action
type AuditEntry struct {
	Actor        models.Identity
	CompanyID    string
	Action       string
	ResourceType string
	ResourceID   string
	Failed       bool
	Detail       string
}

// Record writes e. Persistence failures are logged and swallowed so that
// auditing never fails the operation being audited.
func (a *AuditTrail) Record(ctx context.Context, e AuditEntry) {
	if a == nil {
		return
	}
	status := "success"
	level := zerolog.InfoLevel
	if e.Failed {
		status = "failure"
		level = zerolog.WarnLevel
	}
	companyID := e.CompanyID
	if companyID == "" {
		companyID = e.Actor.CompanyID
	}

	log.WithLevel(level).
		Str("audit_action", e.Action).
		Str("actor_id", e.Actor.UserID).
		Str("company_id", companyID).
		Str("resource_type", e.ResourceType).
		Str("resource_id", e.ResourceID).
		Str("status", status).
		Str("detail", e.Detail).
		Msg("Audit")

	if a.repo == nil {
		return
	}

	entry := &models.AuditLog{
		CompanyID:    companyID,
		ActorID:      e.Actor.UserID,
		ActorEmail:   e.Actor.Email,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Status:       status,
		Detail:       e.Detail,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("audit_action", e.Action).Msg("Failed to persist audit entry")
	}
}

// List returns persisted entries visible to caller
func (a *AuditTrail) List(ctx context.Context, caller models.Identity, limit, offset int) ([]models.AuditLog, error) {
	if a == nil || a.repo == nil {
		return []models.AuditLog{}, nil
	}
	if auth.IsSuperAdmin(caller) {
		return a.repo.ListAll(ctx, limit, offset)
	}
	return a.repo.ListByCompany(ctx, caller.CompanyID, limit, offset)
}

// Notifier pushes tenant scoped events to connected clients
type Notifier interface {
	Broadcast(tenant, eventType string, data any) int
}

func notify(n Notifier, tenant, eventType string, data any) {
	if n == nil || tenant == "" {
		return
	}
	n.Broadcast(tenant, eventType, data)
}
