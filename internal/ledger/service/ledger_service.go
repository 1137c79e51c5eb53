// Package service implements the transaction ledger: mint/burn requests, the
// confirmation state machine, and operational listings. The ledger alone
// mutates credit transactions and company balances; the scheduler and the HTTP
// layer only request mutations through it.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	"carbon-ledger/backend/internal/ledger/domain"
	"carbon-ledger/backend/internal/ledger/repository"
)

// TxRepo is the minimal ledger repository needed by the service.
type TxRepo interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetPendingMint(ctx context.Context, deviceID string) (*domain.Transaction, error)
	ListByDevice(ctx context.Context, deviceID string) ([]*domain.Transaction, error)
	Confirm(ctx context.Context, id, externalRef string, at time.Time) (*domain.Transaction, error)
	MarkFailed(ctx context.Context, id, detail string, at time.Time) (*domain.Transaction, error)
}

// DeviceRepo is the minimal device repository needed by the service.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
}

// CeilingSource reports how many credits a device has accrued but not yet
// minted; mint requests above it are rejected.
type CeilingSource interface {
	AvailableToMint(ctx context.Context, deviceID string) (decimal.Decimal, error)
}

// TransactionList is a device's transactions with aggregate counts by status.
type TransactionList struct {
	Transactions []*domain.Transaction
	StatusCounts map[domain.Status]int
}

// Service is the transaction ledger.
type Service struct {
	repo    TxRepo
	devices DeviceRepo
	ceiling CeilingSource
	nowF    func() time.Time
}

// NewService returns a ledger service over the given repositories.
func NewService(repo TxRepo, devices DeviceRepo, ceiling CeilingSource) *Service {
	return &Service{repo: repo, devices: devices, ceiling: ceiling, nowF: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the service clock; tests use it for deterministic timestamps.
func (s *Service) WithNow(nowF func() time.Time) *Service {
	s.nowF = nowF
	return s
}

// CreateMintRequest inserts a PENDING MINT for the device. Balances do not
// change until confirmation. Rejects a non-positive amount, a second pending
// mint for the device (ConflictError carrying the existing id), and an amount
// above the device's accrued-but-unminted ceiling.
func (s *Service) CreateMintRequest(ctx context.Context, deviceID string, amount decimal.Decimal, meta domain.Metadata) (*domain.Transaction, error) {
	if deviceID == "" {
		return nil, apperror.Validation("deviceId", "must not be empty")
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount", "must be positive")
	}

	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return nil, apperror.NotFound("device", deviceID)
	}
	if !dev.GeneratesCredits() {
		return nil, apperror.Validation("deviceId", "device does not generate credits")
	}

	if existing, err := s.repo.GetPendingMint(ctx, deviceID); err != nil {
		return nil, apperror.Persistence("check pending mint", err)
	} else if existing != nil {
		return nil, &apperror.ConflictError{Detail: "device already has a pending mint", ExistingID: existing.ID}
	}

	available, err := s.ceiling.AvailableToMint(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		return nil, &apperror.InsufficientCreditsError{Requested: amount, Available: available}
	}

	now := s.nowF()
	t := &domain.Transaction{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Type:      domain.TxMint,
		Amount:    amount,
		Status:    domain.StatusPending,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, apperror.Validation("transaction", err.Error())
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicatePendingMint) {
			// Lost the race with a concurrent request; report the winner's id.
			existing, lookupErr := s.repo.GetPendingMint(ctx, deviceID)
			if lookupErr == nil && existing != nil {
				return nil, &apperror.ConflictError{Detail: "device already has a pending mint", ExistingID: existing.ID}
			}
			return nil, &apperror.ConflictError{Detail: "device already has a pending mint"}
		}
		return nil, apperror.Persistence("insert mint request", err)
	}
	return t, nil
}

// CreateBurnRequest inserts a PENDING BURN for the device. The balance
// decrement is applied, conditionally, at confirmation.
func (s *Service) CreateBurnRequest(ctx context.Context, deviceID string, amount decimal.Decimal, meta domain.Metadata) (*domain.Transaction, error) {
	if deviceID == "" {
		return nil, apperror.Validation("deviceId", "must not be empty")
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount", "must be positive")
	}
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return nil, apperror.NotFound("device", deviceID)
	}

	now := s.nowF()
	t := &domain.Transaction{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Type:      domain.TxBurn,
		Amount:    amount,
		Status:    domain.StatusPending,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, apperror.Validation("transaction", err.Error())
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperror.Persistence("insert burn request", err)
	}
	return t, nil
}

// Confirm transitions the transaction to CONFIRMED on external confirmation,
// applying its balance effect atomically. Terminal records are rejected with a
// ConflictError: CONFIRMED and FAILED are final.
func (s *Service) Confirm(ctx context.Context, txID, externalRef string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, apperror.Validation("transactionId", "must not be empty")
	}
	t, err := s.repo.Confirm(ctx, txID, externalRef, s.nowF())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotPending):
			return nil, s.terminalConflict(ctx, txID)
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, &apperror.InsufficientCreditsError{}
		default:
			return nil, apperror.Persistence("confirm transaction", err)
		}
	}
	return t, nil
}

// Fail transitions the transaction to FAILED on external rejection or timeout;
// balances are untouched.
func (s *Service) Fail(ctx context.Context, txID, detail string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, apperror.Validation("transactionId", "must not be empty")
	}
	if detail == "" {
		detail = "rejected by confirmation source"
	}
	t, err := s.repo.MarkFailed(ctx, txID, detail, s.nowF())
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, s.terminalConflict(ctx, txID)
		}
		return nil, apperror.Persistence("fail transaction", err)
	}
	return t, nil
}

// ListTransactions returns the device's transactions ordered by creation time
// with aggregate counts by status. Read-only.
func (s *Service) ListTransactions(ctx context.Context, deviceID string) (*TransactionList, error) {
	if deviceID == "" {
		return nil, apperror.Validation("deviceId", "must not be empty")
	}
	list, err := s.repo.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperror.Persistence("list transactions", err)
	}
	counts := make(map[domain.Status]int)
	for _, t := range list {
		counts[t.Status]++
	}
	return &TransactionList{Transactions: list, StatusCounts: counts}, nil
}

// AvailableToMint returns the device's accrued-but-unminted credit ceiling.
func (s *Service) AvailableToMint(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	if deviceID == "" {
		return decimal.Zero, apperror.Validation("deviceId", "must not be empty")
	}
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return decimal.Zero, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return decimal.Zero, apperror.NotFound("device", deviceID)
	}
	return s.ceiling.AvailableToMint(ctx, deviceID)
}

// terminalConflict builds the rejection for a transition attempt on a missing
// or terminal record.
func (s *Service) terminalConflict(ctx context.Context, txID string) error {
	t, err := s.repo.GetByID(ctx, txID)
	if err != nil || t == nil {
		return apperror.NotFound("transaction", txID)
	}
	return &apperror.ConflictError{
		Detail:     "transaction is already " + string(t.Status),
		ExistingID: t.ID,
	}
}
