package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	marketrepo "carbon-ledger/backend/internal/market/repository"
)

type sellRequest struct {
	CompanyID string          `json:"companyId"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	BuyerInfo string          `json:"buyerInfo"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !decodeBody(w, r, &req) {
		return
	}
	receipt, err := s.market.Sell(r.Context(), req.CompanyID, req.Amount, req.Price, req.BuyerInfo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sale":    toSaleDTO(receipt.Sale),
		"balance": toBalanceDTO(receipt.Balance),
	})
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	var filters marketrepo.OfferFilters
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"minPrice", &filters.MinPrice},
		{"maxPrice", &filters.MaxPrice},
		{"minAmount", &filters.MinAmount},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(w, p.name, "must be a decimal number")
			return
		}
		*p.dst = &d
	}

	offers, err := s.market.ListOffers(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offers": toOfferDTOs(offers)})
}

type offerPriceRequest struct {
	CompanyID string          `json:"companyId"`
	Price     decimal.Decimal `json:"price"`
}

func (s *Server) handleSetOfferPrice(w http.ResponseWriter, r *http.Request) {
	var req offerPriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.market.SetOfferPrice(r.Context(), req.CompanyID, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

func (s *Server) handleSaleHistory(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")
	sales, err := s.market.SaleHistory(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sales": toSaleDTOs(sales)})
}
