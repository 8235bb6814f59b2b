package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusStarted                    BookingStatus = "started"
	StatusGuestConfirmed             BookingStatus = "guest_confirmed"
	StatusHostApproved               BookingStatus = "host_approved"
	StatusHostRejected               BookingStatus = "host_rejected"
	StatusGuestRejected              BookingStatus = "guest_rejected"
	StatusGuestRejectedPayment       BookingStatus = "guest_rejected_payment"
	StatusGuestCancelInitiated       BookingStatus = "guest_cancel_initiated"
	StatusGuestPaid                  BookingStatus = "guest_paid"
	StatusHostPaid                   BookingStatus = "host_paid"
	StatusDisputeInitiated           BookingStatus = "dispute_initiated"
	StatusCompleted                  BookingStatus = "completed"
	StatusGuestCancelled             BookingStatus = "guest_cancelled"
	StatusHostCancelled              BookingStatus = "host_cancelled"
	StatusExpiredBeforeConfirmation  BookingStatus = "expired_before_guest_confirmed"
	StatusExpiredBeforeHostApproval  BookingStatus = "expired_before_host_approved"
	StatusRefunded                   BookingStatus = "refunded"
)

// AllStatuses enumerates every status the machine can produce. Used by the
// exclusion-set completeness test so a new status cannot be added without
// classifying it in IsHoldActive.
var AllStatuses = []BookingStatus{
	StatusStarted,
	StatusGuestConfirmed,
	StatusHostApproved,
	StatusHostRejected,
	StatusGuestRejected,
	StatusGuestRejectedPayment,
	StatusGuestCancelInitiated,
	StatusGuestPaid,
	StatusHostPaid,
	StatusDisputeInitiated,
	StatusCompleted,
	StatusGuestCancelled,
	StatusHostCancelled,
	StatusExpiredBeforeConfirmation,
	StatusExpiredBeforeHostApproval,
	StatusRefunded,
}

// inactiveHoldStatuses is the single exclusion set consumed by every overlap
// check. A booking in any status NOT listed here blocks its date range.
var inactiveHoldStatuses = map[BookingStatus]bool{
	StatusStarted:                   true,
	StatusExpiredBeforeConfirmation: true,
	StatusGuestCancelled:            true,
	StatusGuestRejected:             true,
	StatusGuestRejectedPayment:      true,
	StatusHostRejected:              true,
	StatusHostCancelled:             true,
	StatusExpiredBeforeHostApproval: true,
}

// IsHoldActive reports whether a booking in the given status holds its date
// range against other bookings. The active set is the complement of an
// explicit exclusion list, so unknown statuses count as active.
func IsHoldActive(status BookingStatus) bool {
	return !inactiveHoldStatuses[status]
}

// InactiveHoldStatuses returns the exclusion set in stable order, for
// building SQL predicates that must match IsHoldActive exactly.
func InactiveHoldStatuses() []BookingStatus {
	return []BookingStatus{
		StatusStarted,
		StatusExpiredBeforeConfirmation,
		StatusGuestCancelled,
		StatusGuestRejected,
		StatusGuestRejectedPayment,
		StatusHostRejected,
		StatusHostCancelled,
		StatusExpiredBeforeHostApproval,
	}
}

// Booking is the central record. The pricing snapshot (PricePerNight through
// CreditAppliedUSD) is written once at creation and afterwards mutated only
// by the named debit/credit/refund operations, never by a fresh quote.
type Booking struct {
	ID         string
	ListingID  string
	GuestID    string
	HostID     string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Status     BookingStatus
	Currency   Currency

	PricePerNight    decimal.Decimal
	Total            decimal.Decimal
	SecurityDeposit  decimal.Decimal
	TransactionFee   decimal.Decimal
	TotalUSD         decimal.Decimal
	CreditAppliedUSD decimal.Decimal

	ChargeID           string
	RefundID           string
	TxHash             string
	GuestWalletAddress string
	HostWalletAddress  string
	ChainVerifiedAt    *time.Time

	ApprovedBy  string
	RejectedBy  string
	CancelledBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Nights returns the number of nights covered by the stay.
func (b Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

type ActorRole string

const (
	RoleGuest ActorRole = "guest"
	RoleHost  ActorRole = "host"
	RoleAdmin ActorRole = "admin"
)

// Actor identifies the account attempting an operation. Identity resolution
// and admin flagging belong to the external identity collaborator.
type Actor struct {
	ID    string
	Admin bool
}

// RoleOn classifies an actor relative to a booking. Admin wins over being a
// counterparty.
func (a Actor) RoleOn(b Booking) (ActorRole, bool) {
	switch {
	case a.Admin:
		return RoleAdmin, true
	case a.ID == b.GuestID:
		return RoleGuest, true
	case a.ID == b.HostID:
		return RoleHost, true
	}
	return "", false
}

// Action names a guarded state-machine transition.
type Action string

const (
	ActionGuestConfirm        Action = "guest_confirm"
	ActionHostApprove         Action = "host_approve"
	ActionHostReject          Action = "host_reject"
	ActionGuestRejectPayment  Action = "guest_reject_payment"
	ActionGuestCancel         Action = "guest_cancel"
	ActionGuestCancelInitiate Action = "guest_cancel_initiate"
	ActionHostCancel          Action = "host_cancel"
	ActionMarkGuestPaid       Action = "mark_guest_paid"
	ActionComplete            Action = "complete"
)

type transitionRule struct {
	from  []BookingStatus
	to    BookingStatus
	roles []ActorRole
}

var transitions = map[Action]transitionRule{
	ActionGuestConfirm: {
		from:  []BookingStatus{StatusStarted},
		to:    StatusGuestConfirmed,
		roles: []ActorRole{RoleGuest},
	},
	ActionHostApprove: {
		from:  []BookingStatus{StatusGuestConfirmed},
		to:    StatusHostApproved,
		roles: []ActorRole{RoleHost, RoleAdmin},
	},
	ActionHostReject: {
		from:  []BookingStatus{StatusGuestConfirmed},
		to:    StatusHostRejected,
		roles: []ActorRole{RoleHost, RoleAdmin},
	},
	ActionGuestRejectPayment: {
		from:  []BookingStatus{StatusGuestConfirmed, StatusHostApproved},
		to:    StatusGuestRejectedPayment,
		roles: []ActorRole{RoleGuest},
	},
	ActionGuestCancelInitiate: {
		from:  []BookingStatus{StatusHostApproved, StatusGuestPaid},
		to:    StatusGuestCancelInitiated,
		roles: []ActorRole{RoleGuest, RoleAdmin},
	},
	ActionGuestCancel: {
		from: []BookingStatus{
			StatusStarted, StatusGuestConfirmed, StatusHostApproved,
			StatusGuestPaid, StatusGuestCancelInitiated,
		},
		to:    StatusGuestCancelled,
		roles: []ActorRole{RoleGuest, RoleAdmin},
	},
	ActionHostCancel: {
		from: []BookingStatus{
			StatusGuestConfirmed, StatusHostApproved, StatusGuestPaid,
		},
		to:    StatusHostCancelled,
		roles: []ActorRole{RoleHost, RoleAdmin},
	},
	ActionMarkGuestPaid: {
		from:  []BookingStatus{StatusHostApproved},
		to:    StatusGuestPaid,
		roles: []ActorRole{RoleGuest, RoleAdmin},
	},
	ActionComplete: {
		from:  []BookingStatus{StatusGuestPaid, StatusHostPaid},
		to:    StatusCompleted,
		roles: []ActorRole{RoleHost, RoleAdmin},
	},
}

// Transition validates the guarded move and returns the target status. The
// booking itself is not mutated; callers persist the new status inside their
// transaction. Invalid moves return a StateConflictError, unauthorized actors
// ErrNotAuthorized.
func Transition(b Booking, action Action, actor Actor) (BookingStatus, error) {
	rule, ok := transitions[action]
	if !ok {
		return "", &StateConflictError{
			Op:       string(action),
			Expected: "known action",
			Actual:   string(action),
		}
	}

	role, related := actor.RoleOn(b)
	if !related {
		return "", ErrNotAuthorized
	}
	allowed := false
	for _, r := range rule.roles {
		if r == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", ErrNotAuthorized
	}

	for _, from := range rule.from {
		if b.Status == from {
			return rule.to, nil
		}
	}
	return "", &StateConflictError{
		Op:       string(action),
		Expected: statusList(rule.from),
		Actual:   string(b.Status),
	}
}

func statusList(statuses []BookingStatus) string {
	out := ""
	for i, s := range statuses {
		if i > 0 {
			out += "|"
		}
		out += string(s)
	}
	return out
}

// DateRange is a half-open [Start, End) interval of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open interval semantics: two ranges overlap iff
// a.Start < b.End && a.End > b.Start.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.End.After(r.Start)
}
