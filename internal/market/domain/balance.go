package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a company's credit position. CurrentCredit is what is available
// to sell; the invariant current = total - sold - pending burns is enforced by
// the ledger's confirmation updates and the settlement's conditional decrement.
type Balance struct {
	CompanyID     string
	TotalCredit   decimal.Decimal
	CurrentCredit decimal.Decimal
	SoldCredit    decimal.Decimal
	OfferPrice    decimal.Decimal
	UpdatedAt     time.Time
}

// Offer is a company's marketplace listing: its available credits at its offer price.
type Offer struct {
	CompanyID     string
	CompanyName   string
	WalletAddress string
	Available     decimal.Decimal
	OfferPrice    decimal.Decimal
}

// Sale is one append-only row of sale history. Never mutated or deleted.
type Sale struct {
	ID        int64
	CompanyID string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Buyer     string
	SoldAt    time.Time
}
