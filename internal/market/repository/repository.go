package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/market/domain"
)

// ErrConditionFailed is returned by SellAtomic when the conditional balance
// update matched zero rows: the company is unknown or its current credit is
// below the requested amount. Balances are guaranteed unchanged.
var ErrConditionFailed = errors.New("conditional balance update matched no rows")

// OfferFilters narrows ListOffers. Nil fields are unconstrained.
type OfferFilters struct {
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinAmount *decimal.Decimal
}

// Repository defines persistence for company balances and sale history.
// SellAtomic is the only balance-decrementing path and must be a single
// indivisible check-and-decrement; a read-then-write is not acceptable here.
type Repository interface {
	GetBalance(ctx context.Context, companyID string) (*domain.Balance, error)
	// SellAtomic decrements current credit and increments sold credit only if
	// current >= amount, and appends the sale record, as one transaction.
	SellAtomic(ctx context.Context, companyID string, amount, price decimal.Decimal, buyer string, at time.Time) (*domain.Balance, *domain.Sale, error)
	ListOffers(ctx context.Context, f OfferFilters) ([]*domain.Offer, error)
	SetOfferPrice(ctx context.Context, companyID string, price decimal.Decimal, at time.Time) error
	ListSales(ctx context.Context, companyID string) ([]*domain.Sale, error)
}
