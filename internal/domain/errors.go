package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrListingNotFound  = errors.New("listing not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrRateNotFound     = errors.New("currency rate not found")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrInvalidDates     = errors.New("check-out must be after check-in")
	ErrInvalidGuests    = errors.New("guest count exceeds listing maximum")
	ErrInvalidCurrency  = errors.New("unsupported currency")
	ErrInvalidID        = errors.New("invalid id")
	ErrDatesUnavailable = errors.New("dates unavailable")
	ErrUnknownContract  = errors.New("event from unrecognized contract address")
)

// StateConflictError signals a transition attempted from the wrong status or
// a conflicting concurrent write. It carries expected vs. actual so callers
// can refresh and retry manually.
type StateConflictError struct {
	Op       string
	Expected string
	Actual   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: conflict, expected %s, got %s", e.Op, e.Expected, e.Actual)
}

// PriceMismatchError names the quote field whose submitted value diverged
// from the server-derived value. Prices are compared exactly, no tolerance.
type PriceMismatchError struct {
	Field     string
	Submitted decimal.Decimal
	Derived   decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch on %s: submitted %s, derived %s",
		e.Field, e.Submitted, e.Derived)
}

// InsufficientCreditError is a conflict, never a silent clamp: a debit that
// exceeds the balance is rejected without mutating state.
type InsufficientCreditError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: requested %s, available %s",
		e.Requested, e.Available)
}
