package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CancelTier string

const (
	TierWithoutPenalty CancelTier = "without_penalty"
	TierBeforeDeadline CancelTier = "before_deadline"
	TierAfterDeadline  CancelTier = "after_deadline"
)

// cancelDeadlineWindow is how far before check-in the penalty deadline sits.
const cancelDeadlineWindow = 7 * 24 * time.Hour

var partialRefundRate = decimal.NewFromFloat(0.9)

// RefundQuote is the outcome of a cancellation, computed once from the
// booking's stored pricing snapshot and executed as quoted. The rail leg and
// the credit leg are two independent numbers so partial card/partial-credit
// payments unwind proportionally on each.
type RefundQuote struct {
	Tier            CancelTier
	RailRefund      decimal.Decimal // refunded on the settlement rail, booking currency
	RailForfeit     decimal.Decimal // kept from the guest, booking currency
	CreditRefundUSD decimal.Decimal // returned to the stored-value balance
}

// CancelTierAt evaluates the three-tier policy. A booking that never reached
// host approval cancels without penalty regardless of dates; otherwise the
// tier depends on wall-clock distance to check-in, with the boundary at
// exactly 7x24h falling on the before_deadline side.
func CancelTierAt(b Booking, now time.Time) CancelTier {
	if !reachedApproval(b.Status) {
		return TierWithoutPenalty
	}
	deadline := b.CheckIn.Add(-cancelDeadlineWindow)
	if now.After(deadline) {
		return TierAfterDeadline
	}
	return TierBeforeDeadline
}

// reachedApproval reports whether the booking has passed host approval on
// its way through the machine.
func reachedApproval(s BookingStatus) bool {
	switch s {
	case StatusHostApproved, StatusGuestPaid, StatusHostPaid,
		StatusGuestCancelInitiated, StatusDisputeInitiated, StatusCompleted:
		return true
	}
	return false
}

// collected reports whether guest funds have actually been taken. The rail
// charge and the credit debit both happen at guest confirmation, so a
// booking still in started has nothing to unwind on either leg.
func collected(b Booking) bool {
	return b.Status != StatusStarted
}

// GuestCancelQuote computes what the guest gets back on a guest-initiated
// cancellation. Pure: no rate lookups, only the stored snapshot and now.
func GuestCancelQuote(b Booking, now time.Time) RefundQuote {
	if !collected(b) {
		return RefundQuote{
			Tier:            TierWithoutPenalty,
			RailRefund:      decimal.Zero,
			RailForfeit:     decimal.Zero,
			CreditRefundUSD: decimal.Zero,
		}
	}
	charged := b.Total.Sub(b.TransactionFee)
	switch CancelTierAt(b, now) {
	case TierWithoutPenalty:
		// Pre-approval cancellation forfeits nothing, fee included.
		return RefundQuote{
			Tier:            TierWithoutPenalty,
			RailRefund:      b.Total,
			RailForfeit:     decimal.Zero,
			CreditRefundUSD: b.CreditAppliedUSD,
		}
	case TierBeforeDeadline:
		refund := charged.Mul(partialRefundRate)
		return RefundQuote{
			Tier:            TierBeforeDeadline,
			RailRefund:      refund,
			RailForfeit:     charged.Sub(refund),
			CreditRefundUSD: b.CreditAppliedUSD.Mul(partialRefundRate),
		}
	default:
		return RefundQuote{
			Tier:            TierAfterDeadline,
			RailRefund:      decimal.Zero,
			RailForfeit:     charged,
			CreditRefundUSD: decimal.Zero,
		}
	}
}

// HostCancelQuote always refunds the guest in full, both legs and the fee
// included; the host bears the cost of cancelling.
func HostCancelQuote(b Booking) RefundQuote {
	if !collected(b) {
		return RefundQuote{
			Tier:            TierWithoutPenalty,
			RailRefund:      decimal.Zero,
			RailForfeit:     decimal.Zero,
			CreditRefundUSD: decimal.Zero,
		}
	}
	return RefundQuote{
		Tier:            TierWithoutPenalty,
		RailRefund:      b.Total,
		RailForfeit:     decimal.Zero,
		CreditRefundUSD: b.CreditAppliedUSD,
	}
}
