package repository

import (
	"context"
	"net/http"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/store"
)

const (
	usersTable       = "users"
	companiesTable   = "companies"
	invitationsTable = "user_invitations"
)

// storeRepo is shared by the repositories backed by the remote store.
// With propagate set, queries carry the caller's bearer token from ctx so
// the store's row level policies apply; otherwise the service key is used.
type storeRepo struct {
	client    *store.Client
	propagate bool
}

func (r storeRepo) from(ctx context.Context, table string) *store.Query {
	q := r.client.From(table)
	if r.propagate {
		if token, ok := auth.TokenFromContext(ctx); ok {
			q = q.WithToken(token)
		}
	}
	return q
}

// system builds a query that always uses the service credential, for
// lookups that happen before a caller exists (login, registration, setup)
func (r storeRepo) system(table string) *store.Query {
	return r.client.From(table)
}

// remoteErr classifies a store failure. Uniqueness violations become
// conflicts; everything else is passed through verbatim.
func remoteErr(err error, conflictMsg string) error {
	if store.IsStatus(err, http.StatusConflict) && conflictMsg != "" {
		return apperr.Wrap(apperr.ErrConflict, conflictMsg, err)
	}
	return apperr.Wrap(apperr.ErrRemoteStore, err.Error(), err)
}

func decodeErr(err error) error {
	return apperr.Wrap(apperr.ErrRemoteStore, "failed to decode store response", err)
}

func one[T any](res *store.Result, notFound string) (*T, error) {
	row, ok, err := store.First[T](res)
	if err != nil {
		return nil, decodeErr(err)
	}
	if !ok {
		return nil, apperr.NotFound(notFound)
	}
	return &row, nil
}

// written returns the echoed row of a write. An empty echo is a failure.
func written[T any](res *store.Result, what string) (*T, error) {
	row, ok, err := store.First[T](res)
	if err != nil {
		return nil, decodeErr(err)
	}
	if !ok {
		return nil, apperr.New(apperr.ErrRemoteStore, "Store returned no data for "+what)
	}
	return &row, nil
}

func rows[T any](res *store.Result) ([]T, error) {
	out, err := store.Rows[T](res)
	if err != nil {
		return nil, decodeErr(err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
