package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the business direction of a credit transaction.
type TxType string

const (
	// TxMint creates credits for the device's owning company once confirmed.
	TxMint TxType = "MINT"
	// TxBurn retires credits, e.g. for emission offsetting.
	TxBurn TxType = "BURN"
)

// Status is a credit transaction's position in its lifecycle.
// PENDING is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is final. No transition leaves a terminal state.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
// Only PENDING→CONFIRMED and PENDING→FAILED are valid.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// Transaction is an append-only mint/burn record. Balances change only when a
// MINT or BURN is confirmed, never at creation.
type Transaction struct {
	ID          string
	DeviceID    string
	Type        TxType
	Amount      decimal.Decimal
	Status      Status
	ExternalRef *string
	ErrorDetail *string
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate validates the transaction for persistence. Returns an error describing the first validation failure.
func (t *Transaction) Validate() error {
	if t.DeviceID == "" {
		return errors.New("device id is required")
	}
	if t.Type != TxMint && t.Type != TxBurn {
		return errors.New("type must be MINT or BURN")
	}
	if t.Amount.IsNegative() {
		return errors.New("amount must be non-negative")
	}
	if t.Status != StatusPending && t.Status != StatusConfirmed && t.Status != StatusFailed {
		return errors.New("invalid status")
	}
	return t.Metadata.Validate()
}
