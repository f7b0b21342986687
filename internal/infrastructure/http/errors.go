package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/infrastructure/validator"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error body with the given status code
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

type errorMapping struct {
	err    error
	kind   string
	status int
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{validator.ErrUnauthorized, "Unauthorized", http.StatusUnauthorized},
	{entity.ErrMissingCaller, "InvalidRequest", http.StatusBadRequest},
	{entity.ErrMissingContract, "InvalidRequest", http.StatusBadRequest},
	{entity.ErrMissingTokenID, "InvalidRequest", http.StatusBadRequest},
	{entity.ErrInvalidAmount, "InvalidRequest", http.StatusBadRequest},
	{entity.ErrAlreadyListed, "AlreadyListed", http.StatusConflict},
	{entity.ErrNotOwner, "NotOwner", http.StatusForbidden},
	{entity.ErrPriceMustBeAboveZero, "PriceMustBeAboveZero", http.StatusUnprocessableEntity},
	{entity.ErrNotApprovedForMarketplace, "NotApprovedForMarketplace", http.StatusUnprocessableEntity},
	{entity.ErrNotListed, "NotListed", http.StatusNotFound},
	{entity.ErrNotEnoughFunds, "NotEnoughFunds", http.StatusPaymentRequired},
	{entity.ErrNoProceeds, "NoProceeds", http.StatusConflict},
	{entity.ErrTransferFailed, "TransferFailed", http.StatusBadGateway},
	{entity.ErrReentrantCall, "ReentrantCall", http.StatusConflict},
	{entity.ErrLedgerBusy, "LedgerBusy", http.StatusServiceUnavailable},
}

// classifyError returns the error kind and HTTP status for err
func classifyError(err error) (string, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.kind, m.status
		}
	}
	return "InternalError", http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := classifyError(err)
	details := err.Error()
	if status == http.StatusInternalServerError {
		details = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSONError(w, status, kind, details)
}
