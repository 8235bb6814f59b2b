package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/app"
)

// QuoteComputer is the minimal interface needed to price a stay.
type QuoteComputer interface {
	ComputeQuote(ctx context.Context, in app.ComputeQuoteInput) (app.Quote, error)
}

const dateLayout = "2006-01-02"

// actorFrom reads the identity the upstream auth layer attached. Identity
// management is not this service's concern; the headers are trusted.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get("X-Actor-Admin") == "true"
}

// HandleComputeQuote returns an HTTP handler for pricing a stay across all
// known currencies.
func HandleComputeQuote(svc QuoteComputer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req computeQuoteRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDates, err.Error())
			return
		}

		quote, err := svc.ComputeQuote(r.Context(), app.ComputeQuoteInput{
			ListingID:  req.ListingID,
			GuestID:    actorID(r),
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			GuestCount: req.GuestCount,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toQuoteResponse(quote))
	}
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in.UTC(), out.UTC(), nil
}

type computeQuoteRequest struct {
	ListingID  string `json:"listing_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	GuestCount int    `json:"guest_count"`
}

type currencyQuoteResponse struct {
	PricePerNight   decimal.Decimal `json:"price_per_night"`
	NightsTotal     decimal.Decimal `json:"nights_total"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	TransactionFee  decimal.Decimal `json:"transaction_fee"`
	CreditApplied   decimal.Decimal `json:"credit_applied"`
	Total           decimal.Decimal `json:"total"`
	TotalUSD        decimal.Decimal `json:"total_usd"`
}

type quoteResponse struct {
	ListingID  string                           `json:"listing_id"`
	CheckIn    string                           `json:"check_in"`
	CheckOut   string                           `json:"check_out"`
	Nights     int                              `json:"nights"`
	GuestCount int                              `json:"guest_count"`
	Currencies map[string]currencyQuoteResponse `json:"currencies"`
}

func toQuoteResponse(q app.Quote) quoteResponse {
	resp := quoteResponse{
		ListingID:  q.ListingID,
		CheckIn:    q.CheckIn.Format(dateLayout),
		CheckOut:   q.CheckOut.Format(dateLayout),
		Nights:     q.Nights,
		GuestCount: q.GuestCount,
		Currencies: make(map[string]currencyQuoteResponse, len(q.Currencies)),
	}
	for code, cq := range q.Currencies {
		resp.Currencies[string(code)] = currencyQuoteResponse{
			PricePerNight:   cq.PricePerNight,
			NightsTotal:     cq.NightsTotal,
			SecurityDeposit: cq.SecurityDeposit,
			TransactionFee:  cq.TransactionFee,
			CreditApplied:   cq.CreditApplied,
			Total:           cq.Total,
			TotalUSD:        cq.TotalUSD,
		}
	}
	return resp
}
