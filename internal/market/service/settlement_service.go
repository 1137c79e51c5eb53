// Package service implements marketplace settlement: selling credits against
// company balances under concurrent buy/sell pressure. All balance decrements
// go through the repository's single conditional update; the service never
// reads a balance to decide a write.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/apperror"
	"carbon-ledger/backend/internal/market/domain"
	"carbon-ledger/backend/internal/market/repository"
)

// BalanceRepo is the minimal market repository needed by the service.
type BalanceRepo interface {
	GetBalance(ctx context.Context, companyID string) (*domain.Balance, error)
	SellAtomic(ctx context.Context, companyID string, amount, price decimal.Decimal, buyer string, at time.Time) (*domain.Balance, *domain.Sale, error)
	ListOffers(ctx context.Context, f repository.OfferFilters) ([]*domain.Offer, error)
	SetOfferPrice(ctx context.Context, companyID string, price decimal.Decimal, at time.Time) error
	ListSales(ctx context.Context, companyID string) ([]*domain.Sale, error)
}

// SaleReceipt is the outcome of a successful sale: the appended record and the
// updated balance view.
type SaleReceipt struct {
	Sale    *domain.Sale
	Balance *domain.Balance
}

// Service executes sell requests and serves marketplace reads.
type Service struct {
	repo BalanceRepo
	nowF func() time.Time
}

// NewService returns a settlement service over the given repository.
func NewService(repo BalanceRepo) *Service {
	return &Service{repo: repo, nowF: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the service clock; tests use it for deterministic timestamps.
func (s *Service) WithNow(nowF func() time.Time) *Service {
	s.nowF = nowF
	return s
}

// Sell decrements the company's available credit by amount and appends a sale
// record, atomically. Concurrent sells for the same company can never jointly
// exceed availability: the conditional update in the store linearizes them.
// On rejection the error carries the last-known availability for caller retry.
func (s *Service) Sell(ctx context.Context, companyID string, amount, price decimal.Decimal, buyer string) (*SaleReceipt, error) {
	if companyID == "" {
		return nil, apperror.Validation("companyId", "must not be empty")
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount", "must be positive")
	}
	if !price.IsPositive() {
		return nil, apperror.Validation("price", "must be positive")
	}
	if buyer == "" {
		return nil, apperror.Validation("buyerInfo", "must not be empty")
	}

	balance, sale, err := s.repo.SellAtomic(ctx, companyID, amount, price, buyer, s.nowF())
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, s.rejectSell(ctx, companyID, amount)
		}
		return nil, apperror.Persistence("sell credits", err)
	}
	return &SaleReceipt{Sale: sale, Balance: balance}, nil
}

// rejectSell distinguishes "unknown company" from "not enough credit" and, for
// the latter, reports availability as of after the competing sale.
func (s *Service) rejectSell(ctx context.Context, companyID string, amount decimal.Decimal) error {
	balance, err := s.repo.GetBalance(ctx, companyID)
	if err != nil {
		return apperror.Persistence("load balance", err)
	}
	if balance == nil {
		return apperror.NotFound("company", companyID)
	}
	return &apperror.InsufficientCreditsError{Requested: amount, Available: balance.CurrentCredit}
}

// ListOffers returns companies with credit for sale matching the filters,
// sorted by offer price. Lock-free read-only projection.
func (s *Service) ListOffers(ctx context.Context, f repository.OfferFilters) ([]*domain.Offer, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, apperror.Validation("minPrice", "must not exceed maxPrice")
	}
	offers, err := s.repo.ListOffers(ctx, f)
	if err != nil {
		return nil, apperror.Persistence("list offers", err)
	}
	return offers, nil
}

// SetOfferPrice sets the company's per-credit listing price.
func (s *Service) SetOfferPrice(ctx context.Context, companyID string, price decimal.Decimal) (*domain.Balance, error) {
	if companyID == "" {
		return nil, apperror.Validation("companyId", "must not be empty")
	}
	if !price.IsPositive() {
		return nil, apperror.Validation("price", "must be positive")
	}
	if err := s.repo.SetOfferPrice(ctx, companyID, price, s.nowF()); err != nil {
		return nil, apperror.Persistence("set offer price", err)
	}
	balance, err := s.repo.GetBalance(ctx, companyID)
	if err != nil {
		return nil, apperror.Persistence("load balance", err)
	}
	return balance, nil
}

// Balance returns the company's balance view.
func (s *Service) Balance(ctx context.Context, companyID string) (*domain.Balance, error) {
	if companyID == "" {
		return nil, apperror.Validation("companyId", "must not be empty")
	}
	balance, err := s.repo.GetBalance(ctx, companyID)
	if err != nil {
		return nil, apperror.Persistence("load balance", err)
	}
	if balance == nil {
		return nil, apperror.NotFound("company", companyID)
	}
	return balance, nil
}

// SaleHistory returns the company's append-only sale records, newest first.
func (s *Service) SaleHistory(ctx context.Context, companyID string) ([]*domain.Sale, error) {
	if companyID == "" {
		return nil, apperror.Validation("companyId", "must not be empty")
	}
	sales, err := s.repo.ListSales(ctx, companyID)
	if err != nil {
		return nil, apperror.Persistence("list sales", err)
	}
	return sales, nil
}
