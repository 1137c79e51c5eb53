package repository

import (
	"context"
	"database/sql"
	"errors"

	"carbon-ledger/backend/internal/company/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a company repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCompanyByID returns the company for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetCompanyByID(ctx context.Context, id string) (*domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, wallet_address, created_at FROM company WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.WalletAddress, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CreateCompany persists the company. The company must have ID set.
func (r *PostgresRepository) CreateCompany(ctx context.Context, c *domain.Company) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO company (id, name, wallet_address, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.WalletAddress, c.CreatedAt,
	)
	return err
}

// CreateApplication persists the application. The application must have ID and APIKeyDigest set.
func (r *PostgresRepository) CreateApplication(ctx context.Context, a *domain.Application) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO application (id, company_id, name, api_key_digest, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.CompanyID, a.Name, a.APIKeyDigest, a.CreatedAt,
	)
	return err
}
