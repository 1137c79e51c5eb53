package repository

import (
	"context"

	"carbon-ledger/backend/internal/company/domain"
)

// Repository defines persistence for companies and their applications.
type Repository interface {
	GetCompanyByID(ctx context.Context, id string) (*domain.Company, error)
	CreateCompany(ctx context.Context, c *domain.Company) error
	CreateApplication(ctx context.Context, a *domain.Application) error
}
