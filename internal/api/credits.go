package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/apperror"
	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
	"carbon-ledger/backend/internal/processor"
)

type calculateRequest struct {
	DeviceID  string `json:"deviceId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type calculateResponse struct {
	DeviceID    string          `json:"deviceId"`
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
	Credits     decimal.Decimal `json:"credits"`
	CO2Reduced  decimal.Decimal `json:"co2Reduced"`
	EnergySaved decimal.Decimal `json:"energySaved"`
	SamplesUsed int             `json:"samplesUsed"`
	Reason      string          `json:"reason,omitempty"`
}

// handleCalculate previews credits for an explicit window without writing
// anything. The window is capped to bound query cost.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, end, ok := s.parseWindow(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	res, err := s.calculator.ComputeCredits(r.Context(), req.DeviceID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{
		DeviceID:    req.DeviceID,
		WindowStart: start,
		WindowEnd:   end,
		Credits:     res.Credits,
		CO2Reduced:  res.CO2Reduced,
		EnergySaved: res.EnergySaved,
		SamplesUsed: res.SamplesUsed,
		Reason:      res.Reason,
	})
}

func (s *Server) handleMintStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	available, err := s.ledger.AvailableToMint(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId":        deviceID,
		"availableToMint": available,
	})
}

type createMintRequest struct {
	DeviceID    string          `json:"deviceId"`
	Amount      decimal.Decimal `json:"amount"`
	DataHash    string          `json:"dataHash"`
	RequestedBy string          `json:"requestedBy"`
}

func (s *Server) handleCreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DataHash == "" {
		badRequest(w, "dataHash", "must not be empty")
		return
	}

	meta := ledgerdomain.NewManualMetadata(ledgerdomain.ManualAdjustment{
		RequestedBy: req.RequestedBy,
		DataHash:    req.DataHash,
	})
	tx, err := s.ledger.CreateMintRequest(r.Context(), req.DeviceID, req.Amount, meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (s *Server) handleListMints(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	list, err := s.ledger.ListTransactions(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": toTransactionDTOs(list.Transactions),
		"statusCounts": list.StatusCounts,
	})
}

type confirmRequest struct {
	TransactionID string `json:"transactionId"`
	TxHash        string `json:"txHash"`
	Error         string `json:"error"`
}

// handleConfirm is the external confirmation callback: a tx hash confirms the
// transaction, an error fails it. One of the two must be present.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		tx  *ledgerdomain.Transaction
		err error
	)
	switch {
	case req.Error != "":
		tx, err = s.ledger.Fail(r.Context(), req.TransactionID, req.Error)
	case req.TxHash != "":
		tx, err = s.ledger.Confirm(r.Context(), req.TransactionID, req.TxHash)
	default:
		badRequest(w, "txHash", "either txHash or error is required")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

type processRequest struct {
	ProcessAll bool   `json:"processAll"`
	DeviceID   string `json:"deviceId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ProcessAll {
		report, err := s.processor.Tick(r.Context())
		if err != nil {
			if errors.Is(err, processor.ErrTickInProgress) {
				writeError(w, &apperror.ConflictError{Detail: err.Error()})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if req.DeviceID == "" {
		badRequest(w, "deviceId", "required unless processAll is true")
		return
	}
	var window *processor.Window
	if req.StartTime != "" || req.EndTime != "" {
		start, end, ok := s.parseWindow(w, req.StartTime, req.EndTime)
		if !ok {
			return
		}
		window = &processor.Window{Start: start, End: end}
	}

	outcome, err := s.processor.ProcessDevice(r.Context(), req.DeviceID, window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(outcome))
}

func (s *Server) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.processor.Status())
}

// parseWindow parses and validates an explicit accrual window: RFC 3339
// bounds, start before end, length within the cap.
func (s *Server) parseWindow(w http.ResponseWriter, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		badRequest(w, "startTime", "must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		badRequest(w, "endTime", "must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	if !start.Before(end) {
		badRequest(w, "startTime", "must be before endTime")
		return time.Time{}, time.Time{}, false
	}
	if end.Sub(start) > s.maxWindow {
		badRequest(w, "endTime", "window exceeds the maximum length "+s.maxWindow.String())
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
