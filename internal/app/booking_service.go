package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/clock"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// BookingRepository is the durable store for bookings and the holds derived
// from them. The overlap queries must use the exclusion set from
// domain.InactiveHoldStatuses, and the storage layer must additionally carry
// an exclusion constraint over (listing, active status, range) so the
// check-then-create window is closed in the database, not just here.
// UpdateStatus is compare-and-set on the expected current status: a write
// that lost a race fails with a state conflict instead of clobbering the
// winner.
type BookingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetListingForUpdate(ctx context.Context, listingID string) (domain.Listing, error)
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	CreateBooking(ctx context.Context, b domain.Booking) error
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, actorID string, at time.Time) error
	SetRailRefs(ctx context.Context, id string, refs RailRefs) error
	ListActiveOverlapping(ctx context.Context, listingID string, rng domain.DateRange, excludeBookingID string) ([]domain.Booking, error)
	ListBlocksOverlapping(ctx context.Context, listingID string, rng domain.DateRange) ([]domain.CalendarBlock, error)
	ListStaleStarted(ctx context.Context, createdBefore, checkInBefore time.Time) ([]domain.Booking, error)
	ListUnverifiedChainPayments(ctx context.Context) ([]domain.Booking, error)
	MarkChainVerified(ctx context.Context, ids []string, at time.Time) error
}

// RailRefs are the rail-specific reference identifiers recorded on the
// pricing snapshot as settlement proceeds.
type RailRefs struct {
	ChargeID           string
	RefundID           string
	TxHash             string
	GuestWalletAddress string
	HostWalletAddress  string
}

// expiryGrace is how long a booking may sit in started before the sweep
// expires it.
const expiryGrace = 7 * 24 * time.Hour

type BookingService struct {
	repo     BookingRepository
	quotes   *QuoteService
	credits  *CreditService
	rails    *Aggregator
	notifier Notifier
	clock    clock.Clock
}

func NewBookingService(repo BookingRepository, quotes *QuoteService, credits *CreditService, rails *Aggregator, notifier Notifier, clk clock.Clock) *BookingService {
	return &BookingService{
		repo:     repo,
		quotes:   quotes,
		credits:  credits,
		rails:    rails,
		notifier: notifier,
		clock:    clk,
	}
}

type CreateBookingInput struct {
	ListingID  string
	GuestID    string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Submitted  SubmittedPricing
}

// Create validates the submitted quote against a server-side re-derivation,
// vets the date range, and persists the booking in started. A started
// booking does not yet hold its dates; the hold becomes active at guest
// confirmation, which re-runs the same guard.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	draft, err := s.quotes.ValidateSelection(ctx, ValidateSelectionInput{
		ListingID:  in.ListingID,
		GuestID:    in.GuestID,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		GuestCount: in.GuestCount,
		Submitted:  in.Submitted,
	})
	if err != nil {
		return domain.Booking{}, err
	}

	now := s.clock.Now()
	booking := domain.Booking{
		ID:               newID(),
		ListingID:        draft.ListingID,
		GuestID:          draft.GuestID,
		HostID:           draft.HostID,
		CheckIn:          draft.CheckIn,
		CheckOut:         draft.CheckOut,
		GuestCount:       draft.GuestCount,
		Status:           domain.StatusStarted,
		Currency:         draft.Currency,
		PricePerNight:    draft.PricePerNight,
		Total:            draft.Total,
		SecurityDeposit:  draft.SecurityDeposit,
		TransactionFee:   draft.TransactionFee,
		TotalUSD:         draft.TotalUSD,
		CreditAppliedUSD: draft.CreditAppliedUSD,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		listing, err := s.repo.GetListingForUpdate(txCtx, in.ListingID)
		if err != nil {
			return err
		}
		if err := s.checkAvailability(txCtx, listing, domain.DateRange{Start: in.CheckIn, End: in.CheckOut}, ""); err != nil {
			return err
		}
		return s.repo.CreateBooking(txCtx, booking)
	})
	if err != nil {
		return domain.Booking{}, err
	}

	notify(ctx, func(ctx context.Context) error {
		return s.notifier.BookingNotice(ctx, "booking_created", booking)
	})
	return booking, nil
}

// checkAvailability is the single overlap guard, used identically at
// creation and at confirmation. Single-unit listings reject any overlapping
// active hold or synced block; multi-quantity listings count concurrent
// holds against the quantity ceiling.
func (s *BookingService) checkAvailability(ctx context.Context, listing domain.Listing, rng domain.DateRange, excludeBookingID string) error {
	holds, err := s.repo.ListActiveOverlapping(ctx, listing.ID, rng, excludeBookingID)
	if err != nil {
		return err
	}
	blocks, err := s.repo.ListBlocksOverlapping(ctx, listing.ID, rng)
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

// Approve moves a guest-confirmed booking to host_approved. Only the host
// or an administrator may approve.
func (s *BookingService) Approve(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, error) {
	return s.transition(ctx, bookingID, domain.ActionHostApprove, actor, "booking_approved")
}

// transition runs a guarded state-machine move as one transactional unit.
func (s *BookingService) transition(ctx context.Context, bookingID string, action domain.Action, actor domain.Actor, noticeKind string) (domain.Booking, error) {
	var result domain.Booking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		next, err := domain.Transition(booking, action, actor)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.repo.UpdateStatus(txCtx, booking.ID, booking.Status, next, actor.ID, now); err != nil {
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

	notify(ctx, func(ctx context.Context) error {
		return s.notifier.BookingNotice(ctx, noticeKind, result)
	})
	return result, nil
}

// Cancel executes a guest- or host-initiated cancellation: it computes the
// tiered refund from the stored snapshot, issues the credit-leg counter
// entry, and advances status. Chain-rail guest cancellations only initiate;
// the terminal status arrives with the rail's Cancel event.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, actor domain.Actor) (domain.Booking, domain.RefundQuote, error) {
	var (
		result domain.Booking
		refund domain.RefundQuote
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		role, related := actor.RoleOn(booking)
		if !related {
			return domain.ErrNotAuthorized
		}

		now := s.clock.Now()
		action := domain.ActionGuestCancel
		if role == domain.RoleHost {
			action = domain.ActionHostCancel
			refund = domain.HostCancelQuote(booking)
		} else {
			refund = domain.GuestCancelQuote(booking, now)
			// After approval, on-chain funds are escrowed: a guest cancel
			// only initiates, and the terminal status follows the rail's
			// Cancel event through reconciliation.
			if domain.RailFor(booking.Currency) == domain.RailChain &&
				(booking.Status == domain.StatusHostApproved || booking.Status == domain.StatusGuestPaid) {
				action = domain.ActionGuestCancelInitiate
			}
		}

		next, err := domain.Transition(booking, action, actor)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(txCtx, booking.ID, booking.Status, next, actor.ID, now); err != nil {
			return err
		}
		// The credit leg unwinds only what confirmation debited; the quote
		// is zero for bookings that never collected.
		if refund.CreditRefundUSD.IsPositive() {
			if err := s.credits.Credit(txCtx, booking.GuestID, booking.ID, refund.CreditRefundUSD, "cancellation refund"); err != nil {
				return err
			}
		}
		booking.Status = next
		booking.UpdatedAt = now
		result = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, domain.RefundQuote{}, err
	}

	// Card charges are unwound through the gateway; the chain rail refunds
	// in escrow, and its terminal Cancel event arrives via reconciliation.
	if domain.RailFor(result.Currency) == domain.RailCard &&
		result.ChargeID != "" && refund.RailRefund.IsPositive() {
		refundID, err := s.rails.Resolve(result.ListingID).RefundWithCardRail(ctx, result, refund.RailRefund)
		if err != nil {
			return domain.Booking{}, domain.RefundQuote{}, err
		}
		if err := s.repo.SetRailRefs(ctx, result.ID, RailRefs{RefundID: refundID}); err != nil {
			return domain.Booking{}, domain.RefundQuote{}, err
		}
		result.RefundID = refundID
	}

	notify(ctx, func(ctx context.Context) error {
		return s.notifier.BookingNotice(ctx, "booking_cancelled", result)
	})
	zap.L().Info("booking cancelled",
		zap.String("booking_id", result.ID),
		zap.String("tier", string(refund.Tier)),
		zap.String("rail_refund", refund.RailRefund.String()))
	return result, refund, nil
}

// ExpireStale sweeps started bookings older than the grace window or past
// their check-in into expired_before_guest_confirmed. The scan runs
// newest-first and expires at most one stale hold per requester per pass;
// older rows from the same requester are superseded, not independently
// expired. Safe to re-run.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	// Check-in "has passed" only once its calendar day is over, so the
	// cutoff is the start of the current UTC day, compared strictly.
	startOfDay := now.UTC().Truncate(24 * time.Hour)
	stale, err := s.repo.ListStaleStarted(ctx, now.Add(-expiryGrace), startOfDay)
	if err != nil {
		return 0, err
	}

	expired := 0
	seen := make(map[string]bool)
	for _, b := range stale {
		if seen[b.GuestID] {
			continue
		}
		seen[b.GuestID] = true
		err := s.repo.UpdateStatus(ctx, b.ID, domain.StatusStarted, domain.StatusExpiredBeforeConfirmation, "", now)
		if err != nil {
			// A conflict means the guest confirmed between the scan and
			// this write; the row is no longer stale.
			var conflict *domain.StateConflictError
			if errors.As(err, &conflict) {
				continue
			}
			zap.L().Error("expiry sweep: update failed",
				zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		zap.L().Info("expiry sweep", zap.Int("expired", expired), zap.Int("scanned", len(stale)))
	}
	return expired, nil
}

// ListUnverifiedChainPayments returns bookings carrying a claimed tx hash
// that an external chain-indexing collaborator has not yet confirmed.
func (s *BookingService) ListUnverifiedChainPayments(ctx context.Context) ([]domain.Booking, error) {
	return s.repo.ListUnverifiedChainPayments(ctx)
}

// MarkVerified records that the external index confirmed these payments.
func (s *BookingService) MarkVerified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkChainVerified(ctx, ids, s.clock.Now())
}

// MarkExpired expires bookings whose claimed payment never materialized on
// chain.
func (s *BookingService) MarkExpired(ctx context.Context, ids []string) error {
	now := s.clock.Now()
	for _, id := range ids {
		if err := s.repo.UpdateStatus(ctx, id, domain.StatusGuestConfirmed, domain.StatusExpiredBeforeHostApproval, "", now); err != nil {
			return err
		}
	}
	return nil
}
