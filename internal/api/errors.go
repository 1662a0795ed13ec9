package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spigell/leadscore/internal/filtering"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/scoring"
)

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeProcessing       = "PROCESSING_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError is an error with a fixed HTTP status and machine-readable code.
type APIError struct {
	Code    string
	Message string
	Status  int
	Details any
}

func (e *APIError) Error() string { return e.Message }

func newAPIError(status int, code, message string, details any) *APIError {
	return &APIError{Code: code, Message: message, Status: status, Details: details}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func mapDomainError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, leads.ErrInvalid), errors.Is(err, filtering.ErrInvalidQuery):
		return newAPIError(http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, scoring.ErrNoOffer):
		return newAPIError(http.StatusNotFound, CodeNotFound, "No offer configured", nil)
	case errors.Is(err, scoring.ErrNoLeads):
		return newAPIError(http.StatusNotFound, CodeNotFound, "No leads to score", nil)
	case errors.Is(err, scoring.ErrInProgress):
		return newAPIError(http.StatusConflict, CodeConflict, "Scoring already in progress", nil)
	default:
		return newAPIError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := mapDomainError(err)
	writeJSON(w, apiErr.Status, errorEnvelope{
		Success: false,
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
		Timestamp: now(),
	})
}
