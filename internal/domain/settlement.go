package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventInvoice EventType = "Invoice"
	EventPayout  EventType = "Payout"
	EventCancel  EventType = "Cancel"
	EventRefund  EventType = "Refund"
	EventDispute EventType = "Dispute"
)

// RailPayload carries the rail-native fields exactly as the settlement
// contract emits them: token amounts as integer dust strings, deadlines as
// epoch seconds. Field names are fixed by the contract; do not rename.
type RailPayload struct {
	BookingID           string `json:"bookingId"`
	GuestWalletAddress  string `json:"guestWalletAddress"`
	HostWalletAddress   string `json:"hostWalletAddress"`
	PriceDust           string `json:"price"`
	CancellationFeeDust string `json:"cancellationFee"`
	CheckInSeconds      int64  `json:"checkIn"`
	CheckOutSeconds     int64  `json:"checkOut"`
	TxHash              string `json:"txHash"`
}

// SettlementEvent is an immutable, append-only record of one rail-originated
// event. Replays of the same sequence are permitted; the log is used for the
// latest-observed-sequence read and audit replay only.
type SettlementEvent struct {
	Sequence        int64
	Type            EventType
	ContractAddress string
	Payload         RailPayload
	ObservedAt      time.Time
}

// tokenDustExponent is the token's on-chain precision: 1 token = 1e18 dust.
const tokenDustExponent = 18

// FromDust converts an integer dust-unit string into a decimal token amount.
func FromDust(dust string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(dust)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-tokenDustExponent), nil
}

// FoldAddress canonicalizes a chain address for comparison and storage.
func FoldAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Mismatch records one field-level disagreement between an emitted event and
// the stored booking snapshot.
type Mismatch struct {
	Emitted string
	Booked  string
}

// MismatchSet maps field name to disagreement. An empty set means the event
// verified clean.
type MismatchSet map[string]Mismatch
