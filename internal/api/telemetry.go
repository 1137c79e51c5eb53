package api

import (
	"log"
	"net/http"

	"carbon-ledger/backend/internal/ingest"
)

func (s *Server) handleWalletAddress(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("apiKey")
	res, err := s.resolver.Resolve(r.Context(), apiKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"companyId":     res.CompanyID,
		"companyName":   res.CompanyName,
		"walletAddress": res.WalletAddress,
		"applicationId": res.ApplicationID,
		"cached":        res.Cached,
	})
}

// handleTelemetry accepts a sample authenticated by the X-API-Key header.
// With Kafka configured the sample is queued for the worker (202); otherwise
// it is written inline (201).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		badRequest(w, "X-API-Key", "header is required")
		return
	}
	var sample ingest.Sample
	if !decodeBody(w, r, &sample) {
		return
	}

	if s.producer != nil {
		if err := s.producer.Emit(r.Context(), &ingest.Message{APIKey: apiKey, Sample: sample}); err != nil {
			// Kafka down: fall through to the inline path so samples survive.
			log.Printf("api: telemetry emit failed, writing inline: %v", err)
		} else {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			return
		}
	}

	p, err := s.ingestor.Ingest(r.Context(), apiKey, sample)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"deviceId":    p.DeviceID,
		"companyId":   p.CompanyID,
		"co2Reduced":  p.CO2Reduced,
		"energySaved": p.EnergySaved,
		"recordedAt":  p.RecordedAt,
	})
}
