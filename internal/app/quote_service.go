package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

type ListingGetter interface {
	GetListing(ctx context.Context, id string) (domain.Listing, error)
}

// RateSource supplies current conversion rates. It is an injected read-only
// dependency; the pricing code never fetches rates on its own.
type RateSource interface {
	ListRates(ctx context.Context) ([]domain.CurrencyRate, error)
}

type BalanceReader interface {
	GetBalance(ctx context.Context, accountID string) (domain.CreditBalance, error)
}

// PricingConfig carries per-currency transaction-fee rates. Zero-valued
// config means no fee anywhere; tests substitute deterministic values.
type PricingConfig struct {
	FeeRates map[domain.Currency]decimal.Decimal
}

func (c PricingConfig) feeRate(cur domain.Currency) decimal.Decimal {
	if c.FeeRates == nil {
		return decimal.Zero
	}
	return c.FeeRates[cur]
}

type QuoteService struct {
	listings ListingGetter
	rates    RateSource
	credits  BalanceReader
	cfg      PricingConfig
}

func NewQuoteService(listings ListingGetter, rates RateSource, credits BalanceReader, cfg PricingConfig) *QuoteService {
	return &QuoteService{
		listings: listings,
		rates:    rates,
		credits:  credits,
		cfg:      cfg,
	}
}

// CurrencyQuote is one currency's candidate totals for a stay. CreditApplied
// is a negative line item; Total excludes the security deposit, which is
// settled with the rail (card authorization or on-chain escrow) rather than
// folded into the charge.
type CurrencyQuote struct {
	Currency        domain.Currency
	PricePerNight   decimal.Decimal
	NightsTotal     decimal.Decimal
	SecurityDeposit decimal.Decimal
	TransactionFee  decimal.Decimal
	CreditApplied   decimal.Decimal
	Total           decimal.Decimal
	TotalUSD        decimal.Decimal

	// CreditAppliedUSD is the positive USD amount the credit line debits
	// from the stored-value balance at confirmation.
	CreditAppliedUSD decimal.Decimal
}

type Quote struct {
	ListingID  string
	CheckIn    time.Time
	CheckOut   time.Time
	Nights     int
	GuestCount int
	Currencies map[domain.Currency]CurrencyQuote
}

type ComputeQuoteInput struct {
	ListingID  string
	GuestID    string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
}

// ComputeQuote derives candidate totals for every known currency, including
// the reference currency. Identical inputs against unchanged rates yield
// identical totals.
func (s *QuoteService) ComputeQuote(ctx context.Context, in ComputeQuoteInput) (Quote, error) {
	stay := domain.DateRange{Start: in.CheckIn, End: in.CheckOut}
	if !stay.Valid() {
		return Quote{}, domain.ErrInvalidDates
	}

	listing, err := s.listings.GetListing(ctx, in.ListingID)
	if err != nil {
		return Quote{}, err
	}

	balanceUSD := decimal.Zero
	if in.GuestID != "" {
		bal, err := s.credits.GetBalance(ctx, in.GuestID)
		if err != nil {
			return Quote{}, err
		}
		balanceUSD = bal.AmountUSD
	}

	rates, err := s.rates.ListRates(ctx)
	if err != nil {
		return Quote{}, err
	}

	nights := int(in.CheckOut.Sub(in.CheckIn).Hours() / 24)
	nightsTotalUSD := listing.PricePerNightUSD.Mul(decimal.NewFromInt(int64(nights)))

	quote := Quote{
		ListingID:  in.ListingID,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		Nights:     nights,
		GuestCount: in.GuestCount,
		Currencies: make(map[domain.Currency]CurrencyQuote, len(rates)),
	}

	for _, rate := range rates {
		cq := s.quoteInCurrency(listing, rate, nightsTotalUSD, balanceUSD)
		quote.Currencies[rate.Code] = cq
	}
	return quote, nil
}

func (s *QuoteService) quoteInCurrency(listing domain.Listing, rate domain.CurrencyRate, nightsTotalUSD, balanceUSD decimal.Decimal) CurrencyQuote {
	nightsTotal := rate.FromUSD(nightsTotalUSD)
	fee := nightsTotal.Mul(s.cfg.feeRate(rate.Code))
	if rate.Code == domain.CurrencyBEE {
		fee = fee.Floor()
	}

	available := rate.FromUSD(balanceUSD)
	credit := decimal.Min(nightsTotal, available)

	total := nightsTotal.Add(fee).Sub(credit)
	return CurrencyQuote{
		Currency:         rate.Code,
		PricePerNight:    rate.FromUSD(listing.PricePerNightUSD),
		NightsTotal:      nightsTotal,
		SecurityDeposit:  rate.FromUSD(listing.SecurityDepositUSD),
		TransactionFee:   fee,
		CreditApplied:    credit.Neg(),
		Total:            total,
		TotalUSD:         rate.ToUSDAmount(total),
		CreditAppliedUSD: decimal.Min(nightsTotalUSD, balanceUSD),
	}
}

// SubmittedPricing is what the caller claims the stay costs in its chosen
// currency, captured at quote time.
type SubmittedPricing struct {
	Currency        domain.Currency
	PricePerNight   decimal.Decimal
	Total           decimal.Decimal
	SecurityDeposit decimal.Decimal
}

// BookingDraft is a server-validated pricing snapshot, ready to be persisted
// by the booking service inside its availability transaction.
type BookingDraft struct {
	ListingID  string
	HostID     string
	GuestID    string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Currency   domain.Currency

	PricePerNight    decimal.Decimal
	Total            decimal.Decimal
	SecurityDeposit  decimal.Decimal
	TransactionFee   decimal.Decimal
	TotalUSD         decimal.Decimal
	CreditAppliedUSD decimal.Decimal
}

type ValidateSelectionInput struct {
	ListingID  string
	GuestID    string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Submitted  SubmittedPricing
}

// ValidateSelection re-derives the quote server-side and requires the
// submitted nightly price, total, and deposit to match the derived values
// exactly. Stale or tampered prices fail with a PriceMismatchError naming
// the field and both values.
func (s *QuoteService) ValidateSelection(ctx context.Context, in ValidateSelectionInput) (BookingDraft, error) {
	listing, err := s.listings.GetListing(ctx, in.ListingID)
	if err != nil {
		return BookingDraft{}, err
	}
	if in.GuestCount <= 0 || in.GuestCount > listing.MaxGuests {
		return BookingDraft{}, domain.ErrInvalidGuests
	}

	quote, err := s.ComputeQuote(ctx, ComputeQuoteInput{
		ListingID:  in.ListingID,
		GuestID:    in.GuestID,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		GuestCount: in.GuestCount,
	})
	if err != nil {
		return BookingDraft{}, err
	}

	derived, ok := quote.Currencies[in.Submitted.Currency]
	if !ok {
		return BookingDraft{}, domain.ErrInvalidCurrency
	}

	if !in.Submitted.PricePerNight.Equal(derived.PricePerNight) {
		return BookingDraft{}, &domain.PriceMismatchError{
			Field: "pricePerNight", Submitted: in.Submitted.PricePerNight, Derived: derived.PricePerNight,
		}
	}
	if !in.Submitted.Total.Equal(derived.Total) {
		return BookingDraft{}, &domain.PriceMismatchError{
			Field: "total", Submitted: in.Submitted.Total, Derived: derived.Total,
		}
	}
	if !in.Submitted.SecurityDeposit.Equal(derived.SecurityDeposit) {
		return BookingDraft{}, &domain.PriceMismatchError{
			Field: "securityDeposit", Submitted: in.Submitted.SecurityDeposit, Derived: derived.SecurityDeposit,
		}
	}

	zap.L().Debug("selection validated",
		zap.String("listing_id", in.ListingID),
		zap.String("currency", string(in.Submitted.Currency)),
		zap.String("total", derived.Total.String()))

	return BookingDraft{
		ListingID:        in.ListingID,
		HostID:           listing.HostID,
		GuestID:          in.GuestID,
		CheckIn:          in.CheckIn,
		CheckOut:         in.CheckOut,
		GuestCount:       in.GuestCount,
		Currency:         derived.Currency,
		PricePerNight:    derived.PricePerNight,
		Total:            derived.Total,
		SecurityDeposit:  derived.SecurityDeposit,
		TransactionFee:   derived.TransactionFee,
		TotalUSD:         derived.TotalUSD,
		CreditAppliedUSD: derived.CreditAppliedUSD,
	}, nil
}
