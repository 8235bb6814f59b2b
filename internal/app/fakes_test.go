package app

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

type fakeBookingRepo struct {
	listings map[string]domain.Listing
	bookings map[string]*domain.Booking
	blocks   []domain.CalendarBlock

	statusUpdates []string
}

func newFakeBookingRepo(listings []domain.Listing, bookings []domain.Booking) *fakeBookingRepo {
	repo := &fakeBookingRepo{
		listings: make(map[string]domain.Listing),
		bookings: make(map[string]*domain.Booking),
	}
	for _, l := range listings {
		repo.listings[l.ID] = l
	}
	for i := range bookings {
		b := bookings[i]
		repo.bookings[b.ID] = &b
	}
	return repo
}

func (f *fakeBookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeBookingRepo) GetListingForUpdate(_ context.Context, listingID string) (domain.Listing, error) {
	l, ok := f.listings[listingID]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

func (f *fakeBookingRepo) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return *b, nil
}

func (f *fakeBookingRepo) CreateBooking(_ context.Context, b domain.Booking) error {
	f.bookings[b.ID] = &b
	return nil
}

func (f *fakeBookingRepo) UpdateStatus(_ context.Context, id string, from, to domain.BookingStatus, _ string, at time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if b.Status != from {
		return &domain.StateConflictError{
			Op:       "update status",
			Expected: string(from),
			Actual:   string(b.Status),
		}
	}
	b.Status = to
	b.UpdatedAt = at
	f.statusUpdates = append(f.statusUpdates, id+":"+string(to))
	return nil
}

func (f *fakeBookingRepo) SetRailRefs(_ context.Context, id string, refs RailRefs) error {
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if refs.ChargeID != "" {
		b.ChargeID = refs.ChargeID
	}
	if refs.RefundID != "" {
		b.RefundID = refs.RefundID
	}
	if refs.TxHash != "" {
		b.TxHash = refs.TxHash
	}
	if refs.GuestWalletAddress != "" {
		b.GuestWalletAddress = refs.GuestWalletAddress
	}
	if refs.HostWalletAddress != "" {
		b.HostWalletAddress = refs.HostWalletAddress
	}
	return nil
}

func (f *fakeBookingRepo) ListActiveOverlapping(_ context.Context, listingID string, rng domain.DateRange, excludeBookingID string) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.ListingID != listingID || b.ID == excludeBookingID {
			continue
		}
		if !domain.IsHoldActive(b.Status) {
			continue
		}
		if (domain.DateRange{Start: b.CheckIn, End: b.CheckOut}).Overlaps(rng) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListBlocksOverlapping(_ context.Context, listingID string, rng domain.DateRange) ([]domain.CalendarBlock, error) {
	var out []domain.CalendarBlock
	for _, blk := range f.blocks {
		if blk.ListingID == listingID && blk.Range.Overlaps(rng) {
			out = append(out, blk)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListStaleStarted(_ context.Context, createdBefore, checkInBefore time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.Status != domain.StatusStarted {
			continue
		}
		if b.CreatedAt.Before(createdBefore) || b.CheckIn.Before(checkInBefore) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeBookingRepo) ListUnverifiedChainPayments(_ context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.TxHash != "" && b.ChainVerifiedAt == nil && b.Status == domain.StatusGuestConfirmed {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) MarkChainVerified(_ context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		if b, ok := f.bookings[id]; ok {
			verifiedAt := at
			b.ChainVerifiedAt = &verifiedAt
		}
	}
	return nil
}

type fakeCreditRepo struct {
	balances map[string]decimal.Decimal
	entries  []domain.LedgerEntry
}

func newFakeCreditRepo(balances map[string]decimal.Decimal) *fakeCreditRepo {
	if balances == nil {
		balances = make(map[string]decimal.Decimal)
	}
	return &fakeCreditRepo{balances: balances}
}

func (f *fakeCreditRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeCreditRepo) GetBalance(_ context.Context, accountID string) (domain.CreditBalance, error) {
	bal, ok := f.balances[accountID]
	if !ok {
		bal = decimal.Zero
	}
	return domain.CreditBalance{AccountID: accountID, AmountUSD: bal}, nil
}

func (f *fakeCreditRepo) GetBalanceForUpdate(ctx context.Context, accountID string) (domain.CreditBalance, error) {
	return f.GetBalance(ctx, accountID)
}

func (f *fakeCreditRepo) ApplyEntry(_ context.Context, entry domain.LedgerEntry) error {
	f.balances[entry.AccountID] = f.balances[entry.AccountID].Add(entry.Signed())
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeCreditRepo) ListEntries(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range f.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	listings map[string]domain.Listing
	rates    []domain.CurrencyRate
	accounts map[string]domain.Account
}

func (f *fakeCatalog) GetListing(_ context.Context, id string) (domain.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

func (f *fakeCatalog) ListRates(_ context.Context) ([]domain.CurrencyRate, error) {
	return f.rates, nil
}

func (f *fakeCatalog) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

type fakeEventRepo struct {
	events map[int64]domain.SettlementEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]domain.SettlementEvent)}
}

func (f *fakeEventRepo) AppendEvent(_ context.Context, ev domain.SettlementEvent) error {
	// Replays of a sequence keep the first observation, like the unique key.
	if _, seen := f.events[ev.Sequence]; !seen {
		f.events[ev.Sequence] = ev
	}
	return nil
}

func (f *fakeEventRepo) LatestSequence(_ context.Context) (int64, error) {
	var latest int64
	for seq := range f.events {
		if seq > latest {
			latest = seq
		}
	}
	return latest, nil
}

type recordedNotice struct {
	kind      string
	bookingID string
}

type recordingNotifier struct {
	notices    []recordedNotice
	mismatches []domain.MismatchSet
	err        error
}

func (n *recordingNotifier) BookingNotice(_ context.Context, kind string, b domain.Booking) error {
	n.notices = append(n.notices, recordedNotice{kind: kind, bookingID: b.ID})
	return n.err
}

func (n *recordingNotifier) ReconciliationMismatch(_ context.Context, bookingID string, mismatches domain.MismatchSet) error {
	n.mismatches = append(n.mismatches, mismatches)
	return n.err
}

type fakeGateway struct {
	charges []string
	refunds []string
	err     error
}

func (g *fakeGateway) Charge(_ context.Context, b domain.Booking, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := "charge-" + b.ID
	g.charges = append(g.charges, id)
	return id, nil
}

func (g *fakeGateway) Refund(_ context.Context, chargeID string, _ decimal.Decimal) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := "refund-" + chargeID
	g.refunds = append(g.refunds, id)
	return id, nil
}
