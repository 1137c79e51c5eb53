package api

import (
	"time"

	"github.com/shopspring/decimal"

	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
	marketdomain "carbon-ledger/backend/internal/market/domain"
	"carbon-ledger/backend/internal/processor"
)

type transactionDTO struct {
	ID          string                `json:"id"`
	DeviceID    string                `json:"deviceId"`
	Type        ledgerdomain.TxType   `json:"type"`
	Amount      decimal.Decimal       `json:"amount"`
	Status      ledgerdomain.Status   `json:"status"`
	ExternalRef *string               `json:"externalRef,omitempty"`
	ErrorDetail *string               `json:"errorDetail,omitempty"`
	Metadata    ledgerdomain.Metadata `json:"metadata"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func toTransactionDTO(t *ledgerdomain.Transaction) *transactionDTO {
	if t == nil {
		return nil
	}
	return &transactionDTO{
		ID:          t.ID,
		DeviceID:    t.DeviceID,
		Type:        t.Type,
		Amount:      t.Amount,
		Status:      t.Status,
		ExternalRef: t.ExternalRef,
		ErrorDetail: t.ErrorDetail,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTransactionDTOs(list []*ledgerdomain.Transaction) []*transactionDTO {
	out := make([]*transactionDTO, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

type balanceDTO struct {
	CompanyID     string          `json:"companyId"`
	TotalCredit   decimal.Decimal `json:"totalCredit"`
	CurrentCredit decimal.Decimal `json:"currentCredit"`
	SoldCredit    decimal.Decimal `json:"soldCredit"`
	OfferPrice    decimal.Decimal `json:"offerPrice"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toBalanceDTO(b *marketdomain.Balance) *balanceDTO {
	if b == nil {
		return nil
	}
	return &balanceDTO{
		CompanyID:     b.CompanyID,
		TotalCredit:   b.TotalCredit,
		CurrentCredit: b.CurrentCredit,
		SoldCredit:    b.SoldCredit,
		OfferPrice:    b.OfferPrice,
		UpdatedAt:     b.UpdatedAt,
	}
}

type offerDTO struct {
	CompanyID     string          `json:"companyId"`
	CompanyName   string          `json:"companyName,omitempty"`
	WalletAddress string          `json:"walletAddress,omitempty"`
	Available     decimal.Decimal `json:"available"`
	OfferPrice    decimal.Decimal `json:"offerPrice"`
}

func toOfferDTOs(offers []*marketdomain.Offer) []*offerDTO {
	out := make([]*offerDTO, 0, len(offers))
	for _, o := range offers {
		out = append(out, &offerDTO{
			CompanyID:     o.CompanyID,
			CompanyName:   o.CompanyName,
			WalletAddress: o.WalletAddress,
			Available:     o.Available,
			OfferPrice:    o.OfferPrice,
		})
	}
	return out
}

type saleDTO struct {
	ID        int64           `json:"id"`
	CompanyID string          `json:"companyId"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Buyer     string          `json:"buyer"`
	SoldAt    time.Time       `json:"soldAt"`
}

func toSaleDTO(s *marketdomain.Sale) *saleDTO {
	if s == nil {
		return nil
	}
	return &saleDTO{ID: s.ID, CompanyID: s.CompanyID, Amount: s.Amount, Price: s.Price, Buyer: s.Buyer, SoldAt: s.SoldAt}
}

func toSaleDTOs(sales []*marketdomain.Sale) []*saleDTO {
	out := make([]*saleDTO, 0, len(sales))
	for _, s := range sales {
		out = append(out, toSaleDTO(s))
	}
	return out
}

type outcomeDTO struct {
	DeviceID    string          `json:"deviceId"`
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
	Credits     decimal.Decimal `json:"credits"`
	SamplesUsed int             `json:"samplesUsed"`
	Skipped     string          `json:"skipped,omitempty"`
	Transaction *transactionDTO `json:"transaction,omitempty"`
}

func toOutcomeDTO(o *processor.DeviceOutcome) *outcomeDTO {
	if o == nil {
		return nil
	}
	return &outcomeDTO{
		DeviceID:    o.DeviceID,
		WindowStart: o.WindowStart,
		WindowEnd:   o.WindowEnd,
		Credits:     o.Credits,
		SamplesUsed: o.SamplesUsed,
		Skipped:     o.Skipped,
		Transaction: toTransactionDTO(o.Transaction),
	}
}
