package repository

import (
	"context"
	"errors"
	"time"

	"carbon-ledger/backend/internal/ledger/domain"
)

// Sentinel errors; the service maps them to the caller-facing taxonomy.
var (
	// ErrDuplicatePendingMint is returned by Create when the device already has
	// a PENDING MINT (partial unique index violation).
	ErrDuplicatePendingMint = errors.New("device already has a pending mint")
	// ErrNotPending is returned by Confirm/MarkFailed when the transaction is
	// missing or already terminal; terminal states are final.
	ErrNotPending = errors.New("transaction is not pending")
	// ErrInsufficientBalance is returned by Confirm for a BURN whose amount
	// exceeds the company's current credit.
	ErrInsufficientBalance = errors.New("insufficient balance for burn")
)

// Repository defines persistence for credit transactions and the balance
// effects of confirming them. Confirm and MarkFailed enforce the state machine
// at the store: the status predicate rejects transitions out of terminal states.
type Repository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetPendingMint(ctx context.Context, deviceID string) (*domain.Transaction, error)
	ListByDevice(ctx context.Context, deviceID string) ([]*domain.Transaction, error)
	// LatestMintByWindow returns the MINT whose accounted window ends latest,
	// regardless of status, or nil if the device has none. Mints without
	// accrual evidence rank by creation time. Watermark resolution reads it.
	LatestMintByWindow(ctx context.Context, deviceID string) (*domain.Transaction, error)
	// Confirm transitions the transaction to CONFIRMED and applies its balance
	// effect atomically: MINT increments total and current credit; BURN
	// conditionally decrements current credit.
	Confirm(ctx context.Context, id, externalRef string, at time.Time) (*domain.Transaction, error)
	// MarkFailed transitions the transaction to FAILED with an error detail;
	// balances are untouched.
	MarkFailed(ctx context.Context, id, detail string, at time.Time) (*domain.Transaction, error)
}
