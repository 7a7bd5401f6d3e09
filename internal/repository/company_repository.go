package repository

import (
	"context"

	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/store"
)

// CompanyRepository handles tenant records
type CompanyRepository struct {
	storeRepo
}

func NewCompanyRepository(client *store.Client, propagate bool) *CompanyRepository {
	return &CompanyRepository{storeRepo{client: client, propagate: propagate}}
}

func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) (*models.Company, error) {
	res, err := r.from(ctx, companiesTable).Insert(company).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "Company with this name already exists")
	}
	return written[models.Company](res, "company")
}

func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*models.Company, error) {
	res, err := r.system(companiesTable).Eq("id", id).Limit(1).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return one[models.Company](res, "Company not found")
}

func (r *CompanyRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	res, err := r.system(companiesTable).Select("id").Eq("name", name).Limit(1).Execute(ctx)
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

func (r *CompanyRepository) List(ctx context.Context, offset, limit int) ([]models.Company, error) {
	res, err := r.from(ctx, companiesTable).Order("created_at", true).Offset(offset).Limit(limit).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "")
	}
	return rows[models.Company](res)
}

func (r *CompanyRepository) Update(ctx context.Context, id string, patch map[string]any) (*models.Company, error) {
	res, err := r.from(ctx, companiesTable).Update(patch).Eq("id", id).Execute(ctx)
	if err != nil {
		return nil, remoteErr(err, "Company with this name already exists")
	}
	return one[models.Company](res, "Company not found")
}
