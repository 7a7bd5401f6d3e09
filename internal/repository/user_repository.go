package repository

import (
	"context"

	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/internal/tenancy"
)

// UserRepository handles user records in the remote store
type UserRepository struct {
	storeRepo
}

// NewUserRepository creates a new user repository
func NewUserRepository(client *store.Client, propagate bool) *UserRepository {
	return &UserRepository{storeRepo{client: client, propagate: propagate}}
}

// FindByEmail looks a user up with the service credential
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	res, err := r.system(usersTable).Eq("email", email).Limit(1).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return one[models.User](res, "User not found")
}

// ExistsByEmail reports whether any account uses email
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	res, err := r.system(usersTable).Select("id").Eq("email", email).Limit(1).Execute(ctx)
	if err != nil {
		return false, remoteErr(err, "")
	}
	found, err := rows[struct {
		ID string `json:"id"`
	}](res)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// CountByRole counts accounts holding role
func (r *UserRepository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	res, err := r.system(usersTable).Select("id").Eq("role", string(role)).Execute(ctx)
	if err != nil {
		return 0, remoteErr(err, "")
	}
	found, err := rows[struct {
		ID string `json:"id"`
	}](res)
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

// Create inserts a user. A duplicate email surfaces as a conflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	res, err := r.system(usersTable).Insert(user).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "User with this email already exists")
	}
	return written[models.User](res, "user")
}

// Get returns a user visible to caller. It doubles as the scoped
// existence check before a mutation.
func (r *UserRepository) Get(ctx context.Context, caller models.Identity, id string) (*models.User, error) {
	return tenancy.Lookup[models.User](ctx, r.from(ctx, usersTable), id, caller, "User not found")
}

// List returns the users visible to caller, newest first
func (r *UserRepository) List(ctx context.Context, caller models.Identity, offset, limit int) ([]models.User, error) {
	q := tenancy.Apply(r.from(ctx, usersTable), caller).Order("created_at", true).Offset(offset).Limit(limit)
	res, err := q.Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return rows[models.User](res)
}

// ListByCompany returns the users of one company with the service credential
func (r *UserRepository) ListByCompany(ctx context.Context, companyID string) ([]models.User, error) {
	res, err := r.system(usersTable).Eq("company_id", companyID).Order("created_at", true).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return rows[models.User](res)
}

// Update patches a user within caller's scope and returns the new record
func (r *UserRepository) Update(ctx context.Context, caller models.Identity, id string, patch map[string]any) (*models.User, error) {
	q := tenancy.Apply(r.from(ctx, usersTable).Update(patch).Eq("id", id), caller)
	res, err := q.Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "User with this email already exists")
	}
	return one[models.User](res, "User not found")
}

// Touch records a successful login. It runs with the service credential.
func (r *UserRepository) Touch(ctx context.Context, id string, patch map[string]any) error {
	if _, err := r.system(usersTable).Update(patch).Eq("id", id).Execute(ctx); err != nil {
		return remoteErr(err, "")
	}
	return nil
}

// Delete removes a user within caller's scope
func (r *UserRepository) Delete(ctx context.Context, caller models.Identity, id string) error {
	q := tenancy.Apply(r.from(ctx, usersTable).Delete().Eq("id", id), caller)
	res, err := q.Execute(ctx)
	if err != nil {
		return remoteErr(err, "")
	}
	_, err = one[models.User](res, "User not found")
	return err
}

// Remove deletes a user by id with the service credential. It undoes a
// registration that lost a race.
func (r *UserRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.system(usersTable).Delete().Eq("id", id).Execute(ctx); err != nil {
		return remoteErr(err, "")
	}
	return nil
}
