package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
	"github.com/thebeetoken/beenest-server-sub000/internal/testutil"
)

func TestCreditRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCreditRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	entry := func(accountID string, typ domain.LedgerEntryType, amount int64, memo string) domain.LedgerEntry {
		return domain.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Type:      typ,
			AmountUSD: decimal.NewFromInt(amount),
			Memo:      memo,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("GetBalance treats a missing row as zero", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		accountID := testutil.InsertAccount(t, ctx, pool, "guest@example.com", false)

		b, err := repo.GetBalance(ctx, accountID)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if b.AccountID != accountID || !b.AmountUSD.IsZero() {
			t.Fatalf("expected zero balance, got %+v", b)
		}
	})

	t.Run("ApplyEntry folds signed amounts into the balance", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		accountID := testutil.InsertAccount(t, ctx, pool, "guest@example.com", false)

		if err := repo.ApplyEntry(ctx, entry(accountID, domain.LedgerCredit, 50, "cancellation refund")); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if err := repo.ApplyEntry(ctx, entry(accountID, domain.LedgerDebit, 20, "applied to booking")); err != nil {
			t.Fatalf("debit: %v", err)
		}

		b, err := repo.GetBalance(ctx, accountID)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if !b.AmountUSD.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected balance 30, got %s", b.AmountUSD)
		}

		entries, err := repo.ListEntries(ctx, accountID)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Type != domain.LedgerCredit || entries[1].Type != domain.LedgerDebit {
			t.Fatalf("unexpected entry order: %+v", entries)
		}
		if entries[1].Memo != "applied to booking" {
			t.Fatalf("unexpected memo: %q", entries[1].Memo)
		}
	})

	t.Run("ApplyEntry maps the non-negative check to insufficient credit", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		accountID := testutil.InsertAccount(t, ctx, pool, "guest@example.com", false)

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			return repo.ApplyEntry(txCtx, entry(accountID, domain.LedgerDebit, 10, "overdraw"))
		})
		var insufficient *domain.InsufficientCreditError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientCreditError, got %v", err)
		}

		// The rolled-back transaction leaves no ledger row behind.
		entries, err := repo.ListEntries(ctx, accountID)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected empty ledger, got %+v", entries)
		}
		b, err := repo.GetBalance(ctx, accountID)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if !b.AmountUSD.IsZero() {
			t.Fatalf("expected zero balance, got %s", b.AmountUSD)
		}
	})

	t.Run("ApplyEntry links a booking when one is named", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		hostID := testutil.InsertAccount(t, ctx, pool, "host@example.com", false)
		guestID := testutil.InsertAccount(t, ctx, pool, "guest@example.com", false)
		testutil.InsertListing(t, ctx, pool, "beenest-villa-1", hostID, decimal.NewFromInt(10), decimal.Zero, 4, 1)

		booking := domain.Booking{
			ID: uuid.NewString(), ListingID: "beenest-villa-1",
			GuestID: guestID, HostID: hostID,
			CheckIn: day(2026, 9, 10), CheckOut: day(2026, 9, 12),
			GuestCount: 1, Status: domain.StatusGuestCancelled,
			Currency:      domain.CurrencyUSD,
			PricePerNight: decimal.NewFromInt(10), Total: decimal.NewFromInt(22),
			SecurityDeposit: decimal.Zero, TransactionFee: decimal.NewFromInt(2),
			TotalUSD: decimal.NewFromInt(22), CreditAppliedUSD: decimal.Zero,
		}
		testutil.InsertBooking(t, ctx, pool, booking)

		e := entry(guestID, domain.LedgerCredit, 18, "cancellation refund")
		e.BookingID = booking.ID
		if err := repo.ApplyEntry(ctx, e); err != nil {
			t.Fatalf("credit: %v", err)
		}

		entries, err := repo.ListEntries(ctx, guestID)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		if len(entries) != 1 || entries[0].BookingID != booking.ID {
			t.Fatalf("expected entry linked to booking, got %+v", entries)
		}
	})

	t.Run("GetBalanceForUpdate reads inside the transaction", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		accountID := testutil.InsertAccount(t, ctx, pool, "guest@example.com", false)
		if err := repo.ApplyEntry(ctx, entry(accountID, domain.LedgerCredit, 40, "seed")); err != nil {
			t.Fatalf("credit: %v", err)
		}

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			b, err := repo.GetBalanceForUpdate(txCtx, accountID)
			if err != nil {
				t.Fatalf("get balance for update: %v", err)
			}
			if !b.AmountUSD.Equal(decimal.NewFromInt(40)) {
				t.Fatalf("expected balance 40, got %s", b.AmountUSD)
			}
			return repo.ApplyEntry(txCtx, entry(accountID, domain.LedgerDebit, 40, "spend"))
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		b, err := repo.GetBalance(ctx, accountID)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if !b.AmountUSD.IsZero() {
			t.Fatalf("expected zero balance, got %s", b.AmountUSD)
		}
	})
}
