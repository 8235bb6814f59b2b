package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/clock"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// CardGateway is the external card-network collaborator.
type CardGateway interface {
	Charge(ctx context.Context, b domain.Booking, source string) (chargeID string, err error)
	Refund(ctx context.Context, chargeID string, amount decimal.Decimal) (refundID string, err error)
}

type AccountGetter interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
}

// CardConfirmation is what a card-rail confirmation yields: the supplier
// counterparty alongside the updated booking.
type CardConfirmation struct {
	Counterparty domain.Account
	Booking      domain.Booking
}

// ChainParams carries the guest's on-chain proof at confirmation time.
type ChainParams struct {
	TxHash             string
	GuestWalletAddress string
	HostWalletAddress  string
}

// RailAdapter settles bookings for one inventory namespace. Partner
// namespaces settle card-only; only the default adapter carries the chain
// and not-yet-implemented rails.
type RailAdapter interface {
	ConfirmWithCardRail(ctx context.Context, b domain.Booking, source string) (CardConfirmation, error)
	RefundWithCardRail(ctx context.Context, b domain.Booking, amount decimal.Decimal) (refundID string, err error)
}

// DefaultRailAdapter extends the card rail with the on-chain rail and a stub
// for a rail not yet implemented.
type DefaultRailAdapter interface {
	RailAdapter
	ConfirmWithChainRail(ctx context.Context, b domain.Booking, counterparty domain.Account, params ChainParams) (domain.Booking, error)
	ConfirmWithUnsupportedRail(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

// Aggregator resolves a settlement adapter by the listing's namespace,
// falling back to the default adapter when no namespace-specific one is
// registered. Registration is keyed by the closed namespace set so adding a
// provider is a compile-time-checked change.
type Aggregator struct {
	adapters map[domain.Namespace]RailAdapter
	fallback DefaultRailAdapter
}

func NewAggregator(fallback DefaultRailAdapter) *Aggregator {
	return &Aggregator{
		adapters: make(map[domain.Namespace]RailAdapter),
		fallback: fallback,
	}
}

// Register installs a namespace-specific adapter.
func (a *Aggregator) Register(ns domain.Namespace, adapter RailAdapter) {
	a.adapters[ns] = adapter
}

// Resolve returns the adapter serving the listing's namespace.
func (a *Aggregator) Resolve(listingID string) RailAdapter {
	if adapter, ok := a.adapters[domain.NamespaceOf(listingID)]; ok {
		return adapter
	}
	return a.fallback
}

// Default returns the default adapter, the only one carrying chain and
// unsupported rails.
func (a *Aggregator) Default() DefaultRailAdapter {
	return a.fallback
}

// SettlementService fronts the aggregator for the booking lifecycle:
// confirmation (guest commitment), rejection, and authorized loads.
type SettlementService struct {
	repo       BookingRepository
	accounts   AccountGetter
	credits    *CreditService
	aggregator *Aggregator
	notifier   Notifier
	clock      clock.Clock
}

func NewSettlementService(repo BookingRepository, accounts AccountGetter, credits *CreditService, aggregator *Aggregator, notifier Notifier, clk clock.Clock) *SettlementService {
	return &SettlementService{
		repo:       repo,
		accounts:   accounts,
		credits:    credits,
		aggregator: aggregator,
		notifier:   notifier,
		clock:      clk,
	}
}

// GetBooking loads a booking for the requester, the supplier, or an
// administrator; anyone else gets not-authorized.
func (s *SettlementService) GetBooking(ctx context.Context, id string, actor domain.Actor) (domain.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if _, ok := actor.RoleOn(booking); !ok {
		return domain.Booking{}, domain.ErrNotAuthorized
	}
	return booking, nil
}

type ConfirmBookingInput struct {
	BookingID  string
	Actor      domain.Actor
	CardSource string
	Chain      ChainParams
}

// Confirm is guest commitment: the booking moves to guest_confirmed, the
// quoted credit amount is debited with its ledger entry, the date range is
// re-vetted under the listing lock, and the chosen rail's confirmation path
// runs. Everything but the rail call is one transactional unit.
func (s *SettlementService) Confirm(ctx context.Context, in ConfirmBookingInput) (domain.Booking, error) {
	var result domain.Booking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBooking(txCtx, in.BookingID)
		if err != nil {
			return err
		}
		next, err := domain.Transition(booking, domain.ActionGuestConfirm, in.Actor)
		if err != nil {
			return err
		}

		listing, err := s.repo.GetListingForUpdate(txCtx, booking.ListingID)
		if err != nil {
			return err
		}
		if err := s.availabilityAtConfirm(txCtx, listing, booking); err != nil {
			return err
		}

		if booking.CreditAppliedUSD.IsPositive() {
			if err := s.credits.Debit(txCtx, booking.GuestID, booking.ID, booking.CreditAppliedUSD, "applied to booking"); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(txCtx, booking.ID, booking.Status, next, in.Actor.ID, now); err != nil {
			return err
		}
		booking.Status = next
		booking.UpdatedAt = now
		result = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	result, err = s.settle(ctx, result, in)
	if err != nil {
		return domain.Booking{}, err
	}

	notify(ctx, func(ctx context.Context) error {
		return s.notifier.BookingNotice(ctx, "booking_confirmed", result)
	})
	return result, nil
}

// availabilityAtConfirm applies the same exclusion-set predicate as the
// creation-time guard, excluding the booking being confirmed from its own
// overlap check.
func (s *SettlementService) availabilityAtConfirm(ctx context.Context, listing domain.Listing, booking domain.Booking) error {
	holds, err := s.repo.ListActiveOverlapping(ctx, listing.ID, domain.DateRange{Start: booking.CheckIn, End: booking.CheckOut}, booking.ID)
	if err != nil {
		return err
	}
	blocks, err := s.repo.ListBlocksOverlapping(ctx, listing.ID, domain.DateRange{Start: booking.CheckIn, End: booking.CheckOut})
	if err != nil {
		return err
	}
	ceiling := listing.Quantity
	if ceiling < 1 {
		ceiling = 1
	}
	if len(holds)+len(blocks) >= ceiling {
		return domain.ErrDatesUnavailable
	}
	return nil
}

// settle dispatches to the rail the booking's currency clears through.
func (s *SettlementService) settle(ctx context.Context, booking domain.Booking, in ConfirmBookingInput) (domain.Booking, error) {
	adapter := s.aggregator.Resolve(booking.ListingID)

	switch domain.RailFor(booking.Currency) {
	case domain.RailCard:
		conf, err := adapter.ConfirmWithCardRail(ctx, booking, in.CardSource)
		if err != nil {
			return domain.Booking{}, err
		}
		if err := s.repo.SetRailRefs(ctx, booking.ID, RailRefs{ChargeID: conf.Booking.ChargeID}); err != nil {
			return domain.Booking{}, err
		}
		return conf.Booking, nil

	case domain.RailChain:
		def, ok := adapter.(DefaultRailAdapter)
		if !ok {
			// Partner inventory never settles on-chain.
			def = s.aggregator.Default()
		}
		counterparty, err := s.accounts.GetAccount(ctx, booking.HostID)
		if err != nil {
			return domain.Booking{}, err
		}
		updated, err := def.ConfirmWithChainRail(ctx, booking, counterparty, in.Chain)
		if err != nil {
			return domain.Booking{}, err
		}
		if err := s.repo.SetRailRefs(ctx, booking.ID, RailRefs{
			TxHash:             updated.TxHash,
			GuestWalletAddress: updated.GuestWalletAddress,
			HostWalletAddress:  updated.HostWalletAddress,
		}); err != nil {
			return domain.Booking{}, err
		}
		return updated, nil

	default:
		return s.aggregator.Default().ConfirmWithUnsupportedRail(ctx, booking)
	}
}

// Reject rejects a booking on behalf of the host or an administrator. The
// on-chain rail only permits rejection from the approvable phase; card
// charges can be voided at any pre-capture point, so the card rail is
// unrestricted by phase.
func (s *SettlementService) Reject(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, error) {
	var (
		result domain.Booking
		refund domain.RefundQuote
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		role, ok := actor.RoleOn(booking)
		if !ok || role == domain.RoleGuest {
			return domain.ErrNotAuthorized
		}

		if domain.RailFor(booking.Currency) == domain.RailChain {
			if booking.Status != domain.StatusGuestConfirmed && booking.Status != domain.StatusGuestCancelInitiated {
				return &domain.StateConflictError{
					Op:       "reject",
					Expected: string(domain.StatusGuestConfirmed) + "|" + string(domain.StatusGuestCancelInitiated),
					Actual:   string(booking.Status),
				}
			}
		}

		// A rejection returns everything the guest put in. The quote is
		// zero on both legs for a booking that never collected.
		refund = domain.HostCancelQuote(booking)

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(txCtx, booking.ID, booking.Status, domain.StatusHostRejected, actor.ID, now); err != nil {
			return err
		}
		if refund.CreditRefundUSD.IsPositive() {
			if err := s.credits.Credit(txCtx, booking.GuestID, booking.ID, refund.CreditRefundUSD, "rejection refund"); err != nil {
				return err
			}
		}
		booking.Status = domain.StatusHostRejected
		booking.UpdatedAt = now
		result = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if domain.RailFor(result.Currency) == domain.RailCard &&
		result.ChargeID != "" && refund.RailRefund.IsPositive() {
		refundID, err := s.aggregator.Resolve(result.ListingID).RefundWithCardRail(ctx, result, refund.RailRefund)
		if err != nil {
			return domain.Booking{}, err
		}
		if err := s.repo.SetRailRefs(ctx, result.ID, RailRefs{RefundID: refundID}); err != nil {
			return domain.Booking{}, err
		}
		result.RefundID = refundID
	}

	notify(ctx, func(ctx context.Context) error {
		return s.notifier.BookingNotice(ctx, "booking_rejected", result)
	})
	return result, nil
}

// beenestAdapter is the default-namespace adapter: card charges through the
// injected gateway, chain confirmations recorded for later reconciliation.
type beenestAdapter struct {
	gateway  CardGateway
	accounts AccountGetter
}

func NewBeenestAdapter(gateway CardGateway, accounts AccountGetter) DefaultRailAdapter {
	return &beenestAdapter{gateway: gateway, accounts: accounts}
}

func (a *beenestAdapter) ConfirmWithCardRail(ctx context.Context, b domain.Booking, source string) (CardConfirmation, error) {
	chargeID, err := a.gateway.Charge(ctx, b, source)
	if err != nil {
		return CardConfirmation{}, err
	}
	counterparty, err := a.accounts.GetAccount(ctx, b.HostID)
	if err != nil {
		return CardConfirmation{}, err
	}
	b.ChargeID = chargeID
	return CardConfirmation{Counterparty: counterparty, Booking: b}, nil
}

func (a *beenestAdapter) RefundWithCardRail(ctx context.Context, b domain.Booking, amount decimal.Decimal) (string, error) {
	return a.gateway.Refund(ctx, b.ChargeID, amount)
}

func (a *beenestAdapter) ConfirmWithChainRail(_ context.Context, b domain.Booking, counterparty domain.Account, params ChainParams) (domain.Booking, error) {
	b.TxHash = params.TxHash
	b.GuestWalletAddress = domain.FoldAddress(params.GuestWalletAddress)
	hostWallet := params.HostWalletAddress
	if hostWallet == "" {
		hostWallet = counterparty.WalletAddress
	}
	b.HostWalletAddress = domain.FoldAddress(hostWallet)
	return b, nil
}

// ConfirmWithUnsupportedRail is a stub for a rail without an implementation
// yet. It must not fabricate success: the booking comes back unchanged and
// status advancement is left to the reconciliation pipeline.
func (a *beenestAdapter) ConfirmWithUnsupportedRail(_ context.Context, b domain.Booking) (domain.Booking, error) {
	zap.L().Warn("confirmation requested on unsupported rail",
		zap.String("booking_id", b.ID),
		zap.String("currency", string(b.Currency)))
	return b, nil
}

// partnerAdapter settles external-source inventory. Card only.
type partnerAdapter struct {
	gateway  CardGateway
	accounts AccountGetter
}

func NewPartnerAdapter(gateway CardGateway, accounts AccountGetter) RailAdapter {
	return &partnerAdapter{gateway: gateway, accounts: accounts}
}

func (a *partnerAdapter) ConfirmWithCardRail(ctx context.Context, b domain.Booking, source string) (CardConfirmation, error) {
	chargeID, err := a.gateway.Charge(ctx, b, source)
	if err != nil {
		return CardConfirmation{}, err
	}
	counterparty, err := a.accounts.GetAccount(ctx, b.HostID)
	if err != nil {
		return CardConfirmation{}, err
	}
	b.ChargeID = chargeID
	return CardConfirmation{Counterparty: counterparty, Booking: b}, nil
}

func (a *partnerAdapter) RefundWithCardRail(ctx context.Context, b domain.Booking, amount decimal.Decimal) (string, error) {
	return a.gateway.Refund(ctx, b.ChargeID, amount)
}
