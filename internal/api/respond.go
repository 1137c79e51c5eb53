package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"carbon-ledger/backend/internal/apperror"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

type errorBody struct {
	Kind       apperror.Kind `json:"kind"`
	Message    string        `json:"message"`
	Field      string        `json:"field,omitempty"`
	ExistingID string        `json:"existingId,omitempty"`
	Requested  string        `json:"requested,omitempty"`
	Available  string        `json:"available,omitempty"`
}

// writeError maps the service error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Kind: apperror.KindOf(err), Message: err.Error()}
	status := http.StatusInternalServerError

	var (
		validation   *apperror.ValidationError
		conflict     *apperror.ConflictError
		insufficient *apperror.InsufficientCreditsError
		notFound     *apperror.NotFoundError
		upstream     *apperror.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body.Field = validation.Field
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body.ExistingID = conflict.ExistingID
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
		body.Requested = insufficient.Requested.String()
		body.Available = insufficient.Available.String()
	case errors.As(err, &upstream):
		status = http.StatusServiceUnavailable
	default:
		// Internal detail stays in the log, not the response.
		log.Printf("api: internal error: %v", err)
		body.Message = "internal error"
	}

	writeJSON(w, status, map[string]errorBody{"error": body})
}

// badRequest writes a 400 for a malformed request body or parameter.
func badRequest(w http.ResponseWriter, field, detail string) {
	writeError(w, apperror.Validation(field, detail))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}
