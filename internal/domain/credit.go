package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditBalance is stored value held by an account, denominated in USD.
// It is a materialized projection of the ledger: every change pairs with an
// appended LedgerEntry in the same transaction, and the balance is never
// negative.
type CreditBalance struct {
	AccountID string
	AmountUSD decimal.Decimal
	UpdatedAt time.Time
}

type LedgerEntryType string

const (
	LedgerDebit  LedgerEntryType = "debit"
	LedgerCredit LedgerEntryType = "credit"
)

// LedgerEntry is one immutable debit or credit against a balance,
// referencing the booking that caused it. Entries are append-only.
type LedgerEntry struct {
	ID        string
	AccountID string
	BookingID string
	Type      LedgerEntryType
	AmountUSD decimal.Decimal
	Memo      string
	CreatedAt time.Time
}

// Signed returns the entry amount with debits negated, so a balance is the
// sum of its entries' signed amounts.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Type == LedgerDebit {
		return e.AmountUSD.Neg()
	}
	return e.AmountUSD
}
