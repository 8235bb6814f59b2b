package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/clock"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// EventRepository is the append-only settlement-event log. Append must be
// idempotent on sequence number: replays are permitted and must not corrupt
// the latest-sequence read.
type EventRepository interface {
	AppendEvent(ctx context.Context, ev domain.SettlementEvent) error
	LatestSequence(ctx context.Context) (int64, error)
}

// feeSlack scales the booked cancellation fee when comparing against the
// emitted one, absorbing floating rounding on the rail side. The emitted fee
// must not exceed booked*feeSlack.
var feeSlack = decimal.RequireFromString("1.000001")

// stayWindow bounds how far an emitted check-in/out deadline may drift from
// the booked date. On-chain deadlines are derived, not copied, so exact
// equality is wrong here.
const stayWindow = 24 * time.Hour

type fieldKind int

const (
	fieldAddress fieldKind = iota
	fieldAmount
	fieldStayDate
)

type fieldCheck struct {
	name string
	kind fieldKind
}

type eventRoute struct {
	from   domain.BookingStatus
	to     domain.BookingStatus
	checks []fieldCheck
}

// ReconcileService ingests settlement-contract events, verifies them against
// stored booking facts within tolerance, and advances status. Financial
// disagreement is reported, never blocking: the rail is authoritative for
// sequencing, and a booking must not lag the physical system's truth.
type ReconcileService struct {
	events   EventRepository
	bookings BookingRepository
	notifier Notifier
	contract string
	clock    clock.Clock
	routes   map[domain.EventType]eventRoute
}

func NewReconcileService(events EventRepository, bookings BookingRepository, notifier Notifier, contractAddress string, clk clock.Clock) *ReconcileService {
	return &ReconcileService{
		events:   events,
		bookings: bookings,
		notifier: notifier,
		contract: domain.FoldAddress(contractAddress),
		clock:    clk,
		routes: map[domain.EventType]eventRoute{
			domain.EventInvoice: {
				from: domain.StatusHostApproved,
				to:   domain.StatusGuestPaid,
				checks: []fieldCheck{
					{"guestWalletAddress", fieldAddress},
					{"hostWalletAddress", fieldAddress},
					{"price", fieldAmount},
					{"checkIn", fieldStayDate},
					{"checkOut", fieldStayDate},
				},
			},
			domain.EventPayout: {
				from: domain.StatusGuestPaid,
				to:   domain.StatusHostPaid,
				checks: []fieldCheck{
					{"hostWalletAddress", fieldAddress},
				},
			},
			domain.EventCancel: {
				from: domain.StatusGuestCancelInitiated,
				to:   domain.StatusGuestCancelled,
				checks: []fieldCheck{
					{"guestWalletAddress", fieldAddress},
					{"cancellationFee", fieldAmount},
				},
			},
			domain.EventRefund: {
				from: domain.StatusDisputeInitiated,
				to:   domain.StatusRefunded,
				checks: []fieldCheck{
					{"guestWalletAddress", fieldAddress},
				},
			},
			domain.EventDispute: {
				from:   domain.StatusGuestPaid,
				to:     domain.StatusDisputeInitiated,
				checks: []fieldCheck{},
			},
		},
	}
}

// Dispatch ingests one rail event: contract vetting, idempotent append, then
// the per-type status advance. Events from an unrecognized contract are
// fatal for that event and never retried; the pipeline keeps going for
// subsequent events.
func (s *ReconcileService) Dispatch(ctx context.Context, ev domain.SettlementEvent) error {
	if domain.FoldAddress(ev.ContractAddress) != s.contract {
		zap.L().Error("settlement event from unrecognized contract",
			zap.Int64("sequence", ev.Sequence),
			zap.String("contract", ev.ContractAddress))
		return domain.ErrUnknownContract
	}

	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = s.clock.Now()
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append event %d: %w", ev.Sequence, err)
	}

	route, ok := s.routes[ev.Type]
	if !ok {
		zap.L().Debug("no handler for event type",
			zap.String("type", string(ev.Type)),
			zap.Int64("sequence", ev.Sequence))
		return nil
	}
	return s.advance(ctx, ev, route)
}

// LatestSequence exposes the newest observed event sequence for the
// listener's resume cursor.
func (s *ReconcileService) LatestSequence(ctx context.Context) (int64, error) {
	return s.events.LatestSequence(ctx)
}

// emittedDetails is the event's rail-native fields formatted into booking
// domain units: dust->decimal, folded addresses, epoch->UTC date.
type emittedDetails struct {
	guestWallet string
	hostWallet  string
	price       decimal.Decimal
	fee         decimal.Decimal
	checkIn     time.Time
	checkOut    time.Time
}

func formatPayload(p domain.RailPayload) (emittedDetails, error) {
	var d emittedDetails
	d.guestWallet = domain.FoldAddress(p.GuestWalletAddress)
	d.hostWallet = domain.FoldAddress(p.HostWalletAddress)
	if p.PriceDust != "" {
		price, err := domain.FromDust(p.PriceDust)
		if err != nil {
			return d, fmt.Errorf("malformed price %q: %w", p.PriceDust, err)
		}
		d.price = price
	}
	if p.CancellationFeeDust != "" {
		fee, err := domain.FromDust(p.CancellationFeeDust)
		if err != nil {
			return d, fmt.Errorf("malformed cancellationFee %q: %w", p.CancellationFeeDust, err)
		}
		d.fee = fee
	}
	if p.CheckInSeconds > 0 {
		d.checkIn = time.Unix(p.CheckInSeconds, 0).UTC()
	}
	if p.CheckOutSeconds > 0 {
		d.checkOut = time.Unix(p.CheckOutSeconds, 0).UTC()
	}
	return d, nil
}

// advance formats the event, verifies it against the booking, reports any
// mismatches, and unconditionally moves the booking to the route's target
// status. Advancing an already-current booking is a no-op, not an error.
func (s *ReconcileService) advance(ctx context.Context, ev domain.SettlementEvent, route eventRoute) error {
	details, err := formatPayload(ev.Payload)
	if err != nil {
		// Malformed event: fatal for this event, logged, not retried.
		zap.L().Error("malformed settlement event",
			zap.Int64("sequence", ev.Sequence), zap.Error(err))
		return err
	}

	booking, err := s.bookings.GetBooking(ctx, ev.Payload.BookingID)
	if err != nil {
		return fmt.Errorf("event %d: %w", ev.Sequence, err)
	}

	mismatches := s.verify(booking, details, route, ev)
	if len(mismatches) > 0 {
		notify(ctx, func(ctx context.Context) error {
			return s.notifier.ReconciliationMismatch(ctx, booking.ID, mismatches)
		})
	}

	if booking.Status == route.to {
		return nil
	}
	if err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, route.to, "", s.clock.Now()); err != nil {
		return fmt.Errorf("advance booking %s: %w", booking.ID, err)
	}
	zap.L().Info("booking advanced by settlement event",
		zap.String("booking_id", booking.ID),
		zap.String("event", string(ev.Type)),
		zap.Int64("sequence", ev.Sequence),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(route.to)))
	return nil
}

// verify runs each applicable comparator and collects every disagreeing
// field. It never fails the advance.
func (s *ReconcileService) verify(b domain.Booking, d emittedDetails, route eventRoute, ev domain.SettlementEvent) domain.MismatchSet {
	mismatches := make(domain.MismatchSet)

	if b.Status != route.from && b.Status != route.to {
		mismatches["status"] = domain.Mismatch{
			Emitted: string(route.from),
			Booked:  string(b.Status),
		}
	}

	for _, check := range route.checks {
		switch check.kind {
		case fieldAddress:
			emitted, booked := d.guestWallet, domain.FoldAddress(b.GuestWalletAddress)
			if check.name == "hostWalletAddress" {
				emitted, booked = d.hostWallet, domain.FoldAddress(b.HostWalletAddress)
			}
			if emitted != booked {
				mismatches[check.name] = domain.Mismatch{Emitted: emitted, Booked: booked}
			}
		case fieldAmount:
			emitted, booked := d.price, b.Total
			if check.name == "cancellationFee" {
				emitted = d.fee
				booked = domain.GuestCancelQuote(b, s.clock.Now()).RailForfeit
			}
			if emitted.GreaterThan(booked.Mul(feeSlack)) {
				mismatches[check.name] = domain.Mismatch{
					Emitted: emitted.String(),
					Booked:  booked.String(),
				}
			}
		case fieldStayDate:
			emitted, booked := d.checkIn, b.CheckIn
			if check.name == "checkOut" {
				emitted, booked = d.checkOut, b.CheckOut
			}
			if emitted.IsZero() || absDuration(emitted.Sub(booked)) > stayWindow {
				mismatches[check.name] = domain.Mismatch{
					Emitted: emitted.Format(time.RFC3339),
					Booked:  booked.Format(time.RFC3339),
				}
			}
		}
	}
	return mismatches
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
