package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/clock"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// CreditRepository pairs every balance write with an appended ledger entry.
// DebitBalance and CreditBalance must run inside the surrounding WithTx so a
// caller abandoning mid-operation leaves nothing half-applied.
type CreditRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBalance(ctx context.Context, accountID string) (domain.CreditBalance, error)
	GetBalanceForUpdate(ctx context.Context, accountID string) (domain.CreditBalance, error)
	ApplyEntry(ctx context.Context, entry domain.LedgerEntry) error
	ListEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
}

type CreditService struct {
	repo  CreditRepository
	clock clock.Clock
}

func NewCreditService(repo CreditRepository, clk clock.Clock) *CreditService {
	return &CreditService{repo: repo, clock: clk}
}

// Debit removes amountUSD from the account's balance and appends the paired
// ledger debit, atomically. The previously quoted amount is re-validated
// against the live balance; an excess debit is rejected as a conflict, never
// clamped.
func (s *CreditService) Debit(ctx context.Context, accountID, bookingID string, amountUSD decimal.Decimal, memo string) error {
	if amountUSD.IsZero() {
		return nil
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		bal, err := s.repo.GetBalanceForUpdate(txCtx, accountID)
		if err != nil {
			return err
		}
		if bal.AmountUSD.LessThan(amountUSD) {
			return &domain.InsufficientCreditError{
				Requested: amountUSD,
				Available: bal.AmountUSD,
			}
		}
		return s.repo.ApplyEntry(txCtx, domain.LedgerEntry{
			ID:        newID(),
			AccountID: accountID,
			BookingID: bookingID,
			Type:      domain.LedgerDebit,
			AmountUSD: amountUSD,
			Memo:      memo,
			CreatedAt: s.clock.Now(),
		})
	})
}

// Credit adds amountUSD back to the balance with its paired ledger entry,
// creating the balance row lazily on first credit.
func (s *CreditService) Credit(ctx context.Context, accountID, bookingID string, amountUSD decimal.Decimal, memo string) error {
	if amountUSD.IsZero() {
		return nil
	}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.ApplyEntry(txCtx, domain.LedgerEntry{
			ID:        newID(),
			AccountID: accountID,
			BookingID: bookingID,
			Type:      domain.LedgerCredit,
			AmountUSD: amountUSD,
			Memo:      memo,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}
	zap.L().Info("credit applied",
		zap.String("account_id", accountID),
		zap.String("booking_id", bookingID),
		zap.String("amount_usd", amountUSD.String()))
	return nil
}

// Balance returns the current balance projection.
func (s *CreditService) Balance(ctx context.Context, accountID string) (domain.CreditBalance, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// Reconcile recomputes the balance from the ledger and reports whether the
// projection matches. Drift means a write escaped the paired-entry rule.
func (s *CreditService) Reconcile(ctx context.Context, accountID string) (bool, error) {
	bal, err := s.repo.GetBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	entries, err := s.repo.ListEntries(ctx, accountID)
	if err != nil {
		return false, err
	}
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Signed())
	}
	if !sum.Equal(bal.AmountUSD) {
		zap.L().Error("credit balance drift",
			zap.String("account_id", accountID),
			zap.String("balance", bal.AmountUSD.String()),
			zap.String("ledger_sum", sum.String()))
		return false, nil
	}
	return true, nil
}
