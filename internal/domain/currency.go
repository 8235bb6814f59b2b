package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	// CurrencyUSD is the reference currency. Credit balances and
	// cross-currency comparisons are denominated in it.
	CurrencyUSD Currency = "USD"
	CurrencyETH Currency = "ETH"
	CurrencyBEE Currency = "BEE"
)

// Rail names the settlement mechanism a currency clears through.
type Rail string

const (
	RailCard        Rail = "card"
	RailChain       Rail = "chain"
	RailUnsupported Rail = "unsupported"
)

// RailFor maps a currency onto its settlement rail.
func RailFor(c Currency) Rail {
	switch c {
	case CurrencyUSD:
		return RailCard
	case CurrencyETH, CurrencyBEE:
		return RailChain
	}
	return RailUnsupported
}

// CurrencyRate converts one unit of Code into USD. Rates are supplied by an
// external collaborator, read-only here, versioned by UpdatedAt only.
type CurrencyRate struct {
	Code      Currency
	ToUSD     decimal.Decimal
	UpdatedAt time.Time
}

// FromUSD converts a USD amount into the rate's currency. BEE amounts are
// floored to whole tokens; other currencies keep full decimal precision.
func (r CurrencyRate) FromUSD(usd decimal.Decimal) decimal.Decimal {
	if r.ToUSD.IsZero() {
		return decimal.Zero
	}
	amount := usd.Div(r.ToUSD)
	if r.Code == CurrencyBEE {
		return amount.Floor()
	}
	return amount
}

// ToUSDAmount converts an amount in the rate's currency back to USD.
func (r CurrencyRate) ToUSDAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.ToUSD)
}
