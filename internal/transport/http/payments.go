package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// ChainPaymentAuditor is the batch reconciliation surface for chain
// transactions that must be confirmed against an external index before being
// trusted.
type ChainPaymentAuditor interface {
	ListUnverifiedChainPayments(ctx context.Context) ([]domain.Booking, error)
	MarkVerified(ctx context.Context, ids []string) error
	MarkExpired(ctx context.Context, ids []string) error
}

// HandleUnverifiedPayments lists bookings whose claimed tx hash awaits
// external confirmation. Admin only.
func HandleUnverifiedPayments(svc ChainPaymentAuditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if !isAdmin(r) {
			writeError(w, http.StatusForbidden, codeNotAuthorized, "not authorized")
			return
		}

		bookings, err := svc.ListUnverifiedChainPayments(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]unverifiedPaymentResponse, 0, len(bookings))
		for _, b := range bookings {
			out = append(out, unverifiedPaymentResponse{
				BookingID: b.ID,
				TxHash:    b.TxHash,
				Currency:  string(b.Currency),
				Total:     b.Total.String(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// HandlePaymentAudit applies the external index's verdict: verified ids are
// stamped, expired ids are swept out of the pipeline. Admin only.
func HandlePaymentAudit(svc ChainPaymentAuditor, verdict string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if !isAdmin(r) {
			writeError(w, http.StatusForbidden, codeNotAuthorized, "not authorized")
			return
		}

		var req paymentAuditRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil || len(req.BookingIDs) == 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "booking_ids required")
			return
		}

		var err error
		if verdict == "verified" {
			err = svc.MarkVerified(r.Context(), req.BookingIDs)
		} else {
			err = svc.MarkExpired(r.Context(), req.BookingIDs)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(paymentAuditResponse{Updated: len(req.BookingIDs)})
	}
}

type unverifiedPaymentResponse struct {
	BookingID string `json:"booking_id"`
	TxHash    string `json:"tx_hash"`
	Currency  string `json:"currency"`
	Total     string `json:"total"`
}

type paymentAuditRequest struct {
	BookingIDs []string `json:"booking_ids"`
}

type paymentAuditResponse struct {
	Updated int `json:"updated"`
}
