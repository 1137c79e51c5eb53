package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/market/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a market repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetBalance returns the company's balance, or nil if the company has none yet.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetBalance(ctx context.Context, companyID string) (*domain.Balance, error) {
	var b domain.Balance
	err := r.db.QueryRowContext(ctx,
		`SELECT company_id, total_credit, current_credit, sold_credit, offer_price, updated_at
		 FROM company_credit WHERE company_id = $1`, companyID,
	).Scan(&b.CompanyID, &b.TotalCredit, &b.CurrentCredit, &b.SoldCredit, &b.OfferPrice, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// SellAtomic performs the conditional check-and-decrement and appends the sale
// record in one database transaction. The WHERE current_credit >= amount
// predicate is the authoritative check; zero rows affected means rejection and
// the transaction rolls back with balances untouched.
func (r *PostgresRepository) SellAtomic(ctx context.Context, companyID string, amount, price decimal.Decimal, buyer string, at time.Time) (*domain.Balance, *domain.Sale, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var b domain.Balance
	err = tx.QueryRowContext(ctx,
		`UPDATE company_credit
		 SET current_credit = current_credit - $2,
		     sold_credit    = sold_credit + $2,
		     updated_at     = $3
		 WHERE company_id = $1 AND current_credit >= $2
		 RETURNING company_id, total_credit, current_credit, sold_credit, offer_price, updated_at`,
		companyID, amount, at,
	).Scan(&b.CompanyID, &b.TotalCredit, &b.CurrentCredit, &b.SoldCredit, &b.OfferPrice, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrConditionFailed
		}
		return nil, nil, err
	}

	sale := &domain.Sale{CompanyID: companyID, Amount: amount, Price: price, Buyer: buyer, SoldAt: at}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO credit_sale_history (company_id, amount, price, buyer, sold_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		companyID, amount, price, buyer, at,
	).Scan(&sale.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &b, sale, nil
}

// ListOffers returns companies with credit available, filtered and sorted by
// offer price ascending. Plain read, no locks taken.
func (r *PostgresRepository) ListOffers(ctx context.Context, f OfferFilters) ([]*domain.Offer, error) {
	query := `SELECT cc.company_id, c.name, c.wallet_address, cc.current_credit, cc.offer_price
		 FROM company_credit cc
		 JOIN company c ON c.id = cc.company_id
		 WHERE cc.current_credit > 0`
	args := []any{}
	idx := 1
	if f.MinPrice != nil {
		query += ` AND cc.offer_price >= $` + itoa(idx)
		args = append(args, *f.MinPrice)
		idx++
	}
	if f.MaxPrice != nil {
		query += ` AND cc.offer_price <= $` + itoa(idx)
		args = append(args, *f.MaxPrice)
		idx++
	}
	if f.MinAmount != nil {
		query += ` AND cc.current_credit >= $` + itoa(idx)
		args = append(args, *f.MinAmount)
		idx++
	}
	query += ` ORDER BY cc.offer_price ASC, cc.company_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.CompanyID, &o.CompanyName, &o.WalletAddress, &o.Available, &o.OfferPrice); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SetOfferPrice sets the company's per-credit offer price, creating the
// balance row if the company has not minted yet.
func (r *PostgresRepository) SetOfferPrice(ctx context.Context, companyID string, price decimal.Decimal, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO company_credit (company_id, total_credit, current_credit, sold_credit, offer_price, updated_at)
		 VALUES ($1, 0, 0, 0, $2, $3)
		 ON CONFLICT (company_id) DO UPDATE SET offer_price = EXCLUDED.offer_price, updated_at = EXCLUDED.updated_at`,
		companyID, price, at,
	)
	return err
}

// ListSales returns the company's sale history, newest first.
func (r *PostgresRepository) ListSales(ctx context.Context, companyID string) ([]*domain.Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, amount, price, buyer, sold_at
		 FROM credit_sale_history WHERE company_id = $1 ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Sale
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Amount, &s.Price, &s.Buyer, &s.SoldAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
