package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/internal/tenancy"
)

// InvitationRepository handles invitation records. Rows are never deleted;
// status changes go through Transition.
type InvitationRepository struct {
	storeRepo
}

func NewInvitationRepository(client *store.Client, propagate bool) *InvitationRepository {
	return &InvitationRepository{storeRepo{client: client, propagate: propagate}}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	res, err := r.from(ctx, invitationsTable).Insert(inv).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "Pending invitation already exists for this email")
	}
	return written[models.Invitation](res, "invitation")
}

// FindPending returns the pending invitation for email
func (r *InvitationRepository) FindPending(ctx context.Context, email string) (*models.Invitation, error) {
	res, err := r.system(invitationsTable).
		Eq("email", email).
		Eq("status", string(models.InvitationPending)).
		Order("created_at", true).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return one[models.Invitation](res, "No pending invitation found for this email")
}

// Get returns an invitation visible to caller
func (r *InvitationRepository) Get(ctx context.Context, caller models.Identity, id string) (*models.Invitation, error) {
	return tenancy.Lookup[models.Invitation](ctx, r.from(ctx, invitationsTable), id, caller, "Invitation not found")
}

// List returns invitations visible to caller, optionally by status
func (r *InvitationRepository) List(ctx context.Context, caller models.Identity, status models.InvitationStatus, offset, limit int) ([]models.Invitation, error) {
	q := tenancy.Apply(r.from(ctx, invitationsTable), caller)
	if status != "" {
		q = q.Eq("status", string(status))
	}
	res, err := q.Order("created_at", true).Offset(offset).Limit(limit).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return rows[models.Invitation](res)
}

// Transition moves invitation id from one status to another with a single
// conditional update. It reports false when the row was no longer in
// from, meaning a concurrent transition won.
func (r *InvitationRepository) Transition(ctx context.Context, id string, from, to models.InvitationStatus, fields map[string]any) (*models.Invitation, bool, error) {
	if !models.CanTransition(from, to) {
		return nil, false, fmt.Errorf("illegal invitation transition %s -> %s", from, to)
	}
	patch := map[string]any{"status": string(to)}
	for k, v := range fields {
		patch[k] = v
	}

	res, err := r.system(invitationsTable).
		Update(patch).
		Eq("id", id).
		Eq("status", string(from)).
		Execute(ctx)
	if err != nil {
		return nil, false, remoteErr(err, "")
	}
	updated, err := rows[models.Invitation](res)
	if err != nil {
		return nil, false, err
	}
	if len(updated) == 0 {
		return nil, false, nil
	}
	return &updated[0], true, nil
}
