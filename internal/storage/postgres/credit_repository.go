package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func (r *CreditRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *CreditRepository) GetBalance(ctx context.Context, accountID string) (domain.CreditBalance, error) {
	return r.getBalance(ctx, accountID, "")
}

// GetBalanceForUpdate row-locks the balance so a concurrent debit on the
// same account serializes behind this transaction.
func (r *CreditRepository) GetBalanceForUpdate(ctx context.Context, accountID string) (domain.CreditBalance, error) {
	return r.getBalance(ctx, accountID, " FOR UPDATE")
}

func (r *CreditRepository) getBalance(ctx context.Context, accountID, lock string) (domain.CreditBalance, error) {
	query := `SELECT account_id, amount_usd, updated_at FROM credit_balances WHERE account_id = $1` + lock

	var b domain.CreditBalance
	err := r.queryRow(ctx, query, accountID).Scan(&b.AccountID, &b.AmountUSD, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Balances are created lazily on first credit; absence is zero.
			return domain.CreditBalance{AccountID: accountID, AmountUSD: decimal.Zero}, nil
		}
		return domain.CreditBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ApplyEntry appends the ledger row and folds its signed amount into the
// balance projection in one statement pair. The non-negative check on
// credit_balances backs up the application-level sufficiency check.
func (r *CreditRepository) ApplyEntry(ctx context.Context, entry domain.LedgerEntry) error {
	const insertEntry = `
INSERT INTO credit_ledger (id, account_id, booking_id, entry_type, amount_usd, memo, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	const upsertBalance = `
INSERT INTO credit_balances (account_id, amount_usd, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id)
DO UPDATE SET amount_usd = credit_balances.amount_usd + EXCLUDED.amount_usd, updated_at = EXCLUDED.updated_at`

	if _, err := r.exec(ctx, insertEntry,
		entry.ID, entry.AccountID, nullIfEmpty(entry.BookingID), string(entry.Type),
		entry.AmountUSD, entry.Memo, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	if _, err := r.exec(ctx, upsertBalance, entry.AccountID, entry.Signed(), entry.CreatedAt); err != nil {
		if isCheckViolation(err) {
			return &domain.InsufficientCreditError{
				Requested: entry.AmountUSD,
				Available: decimal.Zero,
			}
		}
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func (r *CreditRepository) ListEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	const query = `
SELECT id, account_id, COALESCE(booking_id::text, ''), entry_type, amount_usd, memo, created_at
FROM credit_ledger
WHERE account_id = $1
ORDER BY created_at, id`

	rows, err := r.query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.BookingID, &entryType, &e.AmountUSD, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Type = domain.LedgerEntryType(entryType)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *CreditRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CreditRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *CreditRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
