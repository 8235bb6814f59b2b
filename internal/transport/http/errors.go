package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidDates        = "invalid_dates"
	codeInvalidGuests       = "invalid_guest_count"
	codeInvalidCurrency     = "invalid_currency"
	codeInvalidID           = "invalid_id"
	codeDatesUnavailable    = "dates_unavailable"
	codePriceMismatch       = "price_mismatch"
	codeStateConflict       = "state_conflict"
	codeInsufficientCredit  = "insufficient_credit"
	codeNotAuthorized       = "not_authorized"
	codeUnknownContract     = "unknown_contract"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{Error: msg, Code: code})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain errors onto transport codes. Validation is
// 400, conflicts (state, price, overlap, credit) are 409, authorization is
// 403 so it stays distinct from not-found.
func writeServiceError(w http.ResponseWriter, err error) {
	var priceErr *domain.PriceMismatchError
	var stateErr *domain.StateConflictError
	var creditErr *domain.InsufficientCreditError

	switch {
	case errors.Is(err, domain.ErrInvalidDates):
		writeError(w, http.StatusBadRequest, codeInvalidDates, err.Error())
	case errors.Is(err, domain.ErrInvalidGuests):
		writeError(w, http.StatusBadRequest, codeInvalidGuests, err.Error())
	case errors.Is(err, domain.ErrInvalidCurrency):
		writeError(w, http.StatusBadRequest, codeInvalidCurrency, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, codeNotAuthorized, err.Error())
	case errors.Is(err, domain.ErrDatesUnavailable):
		writeError(w, http.StatusConflict, codeDatesUnavailable, err.Error())
	case errors.Is(err, domain.ErrUnknownContract):
		writeError(w, http.StatusBadRequest, codeUnknownContract, err.Error())
	case errors.As(err, &priceErr):
		writeError(w, http.StatusConflict, codePriceMismatch, err.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, codeStateConflict, err.Error())
	case errors.As(err, &creditErr):
		writeError(w, http.StatusConflict, codeInsufficientCredit, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
