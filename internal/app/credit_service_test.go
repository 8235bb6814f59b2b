package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/clock"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

func TestCreditService(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("debit pairs a ledger entry with the balance change", func(t *testing.T) {
		repo := newFakeCreditRepo(map[string]decimal.Decimal{"acc-1": decimal.NewFromInt(50)})
		svc := NewCreditService(repo, clock.NewFixed(now))

		if err := svc.Debit(context.Background(), "acc-1", "b-1", decimal.NewFromInt(20), "applied to booking"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !repo.balances["acc-1"].Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected balance 30, got %s", repo.balances["acc-1"])
		}
		if len(repo.entries) != 1 {
			t.Fatalf("expected one entry, got %d", len(repo.entries))
		}
		entry := repo.entries[0]
		if entry.Type != domain.LedgerDebit || !entry.AmountUSD.Equal(decimal.NewFromInt(20)) || entry.BookingID != "b-1" {
			t.Fatalf("unexpected entry %+v", entry)
		}
	})

	t.Run("over-debit is rejected, never clamped", func(t *testing.T) {
		repo := newFakeCreditRepo(map[string]decimal.Decimal{"acc-1": decimal.NewFromInt(10)})
		svc := NewCreditService(repo, clock.NewFixed(now))

		err := svc.Debit(context.Background(), "acc-1", "b-1", decimal.NewFromInt(15), "")
		var insufficient *domain.InsufficientCreditError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientCreditError, got %v", err)
		}
		if !repo.balances["acc-1"].Equal(decimal.NewFromInt(10)) {
			t.Fatalf("balance must be untouched, got %s", repo.balances["acc-1"])
		}
		if len(repo.entries) != 0 {
			t.Fatalf("no entry may be appended, got %d", len(repo.entries))
		}
	})

	t.Run("zero amounts are a no-op", func(t *testing.T) {
		repo := newFakeCreditRepo(nil)
		svc := NewCreditService(repo, clock.NewFixed(now))

		if err := svc.Debit(context.Background(), "acc-1", "b-1", decimal.Zero, ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := svc.Credit(context.Background(), "acc-1", "b-1", decimal.Zero, ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.entries) != 0 {
			t.Fatalf("expected no entries, got %d", len(repo.entries))
		}
	})

	t.Run("credit creates the balance lazily", func(t *testing.T) {
		repo := newFakeCreditRepo(nil)
		svc := NewCreditService(repo, clock.NewFixed(now))

		if err := svc.Credit(context.Background(), "acc-new", "b-1", decimal.NewFromInt(25), "cancellation refund"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		bal, err := svc.Balance(context.Background(), "acc-new")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bal.AmountUSD.Equal(decimal.NewFromInt(25)) {
			t.Fatalf("expected balance 25, got %s", bal.AmountUSD)
		}
	})

	t.Run("reconcile detects projection drift", func(t *testing.T) {
		repo := newFakeCreditRepo(nil)
		svc := NewCreditService(repo, clock.NewFixed(now))

		if err := svc.Credit(context.Background(), "acc-1", "b-1", decimal.NewFromInt(40), ""); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if err := svc.Debit(context.Background(), "acc-1", "b-2", decimal.NewFromInt(15), ""); err != nil {
			t.Fatalf("debit: %v", err)
		}

		ok, err := svc.Reconcile(context.Background(), "acc-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !ok {
			t.Fatal("expected ledger and balance to agree")
		}

		// A write that skipped the paired-entry rule.
		repo.balances["acc-1"] = repo.balances["acc-1"].Add(decimal.NewFromInt(5))
		ok, err = svc.Reconcile(context.Background(), "acc-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ok {
			t.Fatal("expected drift to be detected")
		}
	})
}
