package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/app"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// BookingLifecycle is the inbound boundary the API layer drives.
type BookingLifecycle interface {
	Create(ctx context.Context, in app.CreateBookingInput) (domain.Booking, error)
	Approve(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, domain.RefundQuote, error)
}

type BookingSettler interface {
	Confirm(ctx context.Context, in app.ConfirmBookingInput) (domain.Booking, error)
	Reject(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, error)
	GetBooking(ctx context.Context, id string, actor domain.Actor) (domain.Booking, error)
}

func requestActor(r *http.Request) domain.Actor {
	return domain.Actor{ID: actorID(r), Admin: isAdmin(r)}
}

// HandleCreateBooking returns an HTTP handler for committing to a quote.
func HandleCreateBooking(svc BookingLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createBookingRequest
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

		booking, err := svc.Create(r.Context(), app.CreateBookingInput{
			ListingID:  req.ListingID,
			GuestID:    actorID(r),
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			GuestCount: req.GuestCount,
			Submitted: app.SubmittedPricing{
				Currency:        domain.Currency(req.Currency),
				PricePerNight:   req.PricePerNight,
				Total:           req.Total,
				SecurityDeposit: req.SecurityDeposit,
			},
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

// HandleBookingAction routes /bookings/{id} and
// /bookings/{id}/{confirm|approve|reject|cancel}.
func HandleBookingAction(lifecycle BookingLifecycle, settler BookingSettler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, action, ok := parseBookingPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		actor := requestActor(r)

		if action == "" {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			booking, err := settler.GetBooking(r.Context(), bookingID, actor)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			respondBooking(w, http.StatusOK, booking)
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "confirm":
			var req confirmBookingRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			booking, err := settler.Confirm(r.Context(), app.ConfirmBookingInput{
				BookingID:  bookingID,
				Actor:      actor,
				CardSource: req.CardSource,
				Chain: app.ChainParams{
					TxHash:             req.TxHash,
					GuestWalletAddress: req.GuestWalletAddress,
					HostWalletAddress:  req.HostWalletAddress,
				},
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			respondBooking(w, http.StatusOK, booking)

		case "approve":
			booking, err := lifecycle.Approve(r.Context(), bookingID, actor)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			respondBooking(w, http.StatusOK, booking)

		case "reject":
			booking, err := settler.Reject(r.Context(), bookingID, actor)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			respondBooking(w, http.StatusOK, booking)

		case "cancel":
			booking, refund, err := lifecycle.Cancel(r.Context(), bookingID, actor)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(cancelResponse{
				Booking:         toBookingResponse(booking),
				Tier:            string(refund.Tier),
				RailRefund:      refund.RailRefund,
				RailForfeit:     refund.RailForfeit,
				CreditRefundUSD: refund.CreditRefundUSD,
			})

		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseBookingPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "bookings" || parts[1] == "" {
		return "", "", false
	}
	switch len(parts) {
	case 2:
		return parts[1], "", true
	case 3:
		return parts[1], parts[2], true
	}
	return "", "", false
}

func respondBooking(w http.ResponseWriter, status int, b domain.Booking) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(toBookingResponse(b))
}

type createBookingRequest struct {
	ListingID       string          `json:"listing_id"`
	CheckIn         string          `json:"check_in"`
	CheckOut        string          `json:"check_out"`
	GuestCount      int             `json:"guest_count"`
	Currency        string          `json:"currency"`
	PricePerNight   decimal.Decimal `json:"price_per_night"`
	Total           decimal.Decimal `json:"total"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
}

type confirmBookingRequest struct {
	CardSource         string `json:"card_source"`
	TxHash             string `json:"tx_hash"`
	GuestWalletAddress string `json:"guest_wallet_address"`
	HostWalletAddress  string `json:"host_wallet_address"`
}

type bookingResponse struct {
	ID              string          `json:"id"`
	ListingID       string          `json:"listing_id"`
	Status          string          `json:"status"`
	Currency        string          `json:"currency"`
	CheckIn         string          `json:"check_in"`
	CheckOut        string          `json:"check_out"`
	GuestCount      int             `json:"guest_count"`
	PricePerNight   decimal.Decimal `json:"price_per_night"`
	Total           decimal.Decimal `json:"total"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	TransactionFee  decimal.Decimal `json:"transaction_fee"`
	TotalUSD        decimal.Decimal `json:"total_usd"`
	CreditApplied   decimal.Decimal `json:"credit_applied_usd"`
	TxHash          string          `json:"tx_hash,omitempty"`
	ChargeID        string          `json:"charge_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type cancelResponse struct {
	Booking         bookingResponse `json:"booking"`
	Tier            string          `json:"tier"`
	RailRefund      decimal.Decimal `json:"rail_refund"`
	RailForfeit     decimal.Decimal `json:"rail_forfeit"`
	CreditRefundUSD decimal.Decimal `json:"credit_refund_usd"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		ListingID:       b.ListingID,
		Status:          string(b.Status),
		Currency:        string(b.Currency),
		CheckIn:         b.CheckIn.Format(dateLayout),
		CheckOut:        b.CheckOut.Format(dateLayout),
		GuestCount:      b.GuestCount,
		PricePerNight:   b.PricePerNight,
		Total:           b.Total,
		SecurityDeposit: b.SecurityDeposit,
		TransactionFee:  b.TransactionFee,
		TotalUSD:        b.TotalUSD,
		CreditApplied:   b.CreditAppliedUSD,
		TxHash:          b.TxHash,
		ChargeID:        b.ChargeID,
		CreatedAt:       b.CreatedAt,
	}
}
