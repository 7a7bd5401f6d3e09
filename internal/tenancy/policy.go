// Package tenancy derives the tenant filters a caller must carry on every
// store query.
package tenancy

import (
	"context"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/store"
)

// Column is the tenant key on every tenant owned table
const Column = "company_id"

// Filter is one mandatory equality predicate
type Filter struct {
	Column string
	Value  string
}

// Filters returns the predicates id must apply. Super admins have global
// scope and get none.
func Filters(id models.Identity) []Filter {
	if auth.IsSuperAdmin(id) {
		return nil
	}
	return []Filter{{Column: Column, Value: id.CompanyID}}
}

// Apply appends the caller's tenant predicates to q
func Apply(q *store.Query, id models.Identity) *store.Query {
	for _, f := range Filters(id) {
		q = q.Eq(f.Column, f.Value)
	}
	return q
}

// AuthorizeTenant rejects a caller acting on a tenant other than its own.
// It runs before any store call is issued.
func AuthorizeTenant(id models.Identity, companyID string) error {
	if auth.IsSuperAdmin(id) {
		return nil
	}
	if companyID == "" || companyID != id.CompanyID {
		return apperr.Authorization("Cannot access resources of another company")
	}
	return nil
}

// Visible reports whether a record owned by companyID is in scope for id
func Visible(id models.Identity, companyID string) bool {
	return AuthorizeTenant(id, companyID) == nil
}

// Lookup fetches record id through q with the caller's tenant predicates
// applied. A record outside the caller's scope is reported as not found.
// Services call it as the scoped existence check before an update or
// delete. The check and the mutation are separate round trips, so the
// mutation must carry the same predicates: a record moved out of scope in
// between is then simply not matched.
func Lookup[T any](ctx context.Context, q *store.Query, id string, caller models.Identity, notFound string) (*T, error) {
	res, err := Apply(q.Eq("id", id), caller).Limit(1).Execute(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRemoteStore, err.Error(), err)
	}
	row, ok, err := store.First[T](res)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRemoteStore, "failed to decode store response", err)
	}
	if !ok {
		return nil, apperr.NotFound(notFound)
	}
	return &row, nil
}
