package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// CatalogRepository serves the read-mostly collaborators: listings, currency
// rates, and account identity.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	const query = `
SELECT id, host_id, price_per_night_usd, security_deposit_usd, max_guests, quantity, created_at
FROM listings WHERE id = $1`

	var l domain.Listing
	err := r.queryRow(ctx, query, id).Scan(
		&l.ID, &l.HostID, &l.PricePerNightUSD, &l.SecurityDepositUSD,
		&l.MaxGuests, &l.Quantity, &l.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *CatalogRepository) ListRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	const query = `SELECT code, to_usd, updated_at FROM currency_rates ORDER BY code`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var out []domain.CurrencyRate
	for rows.Next() {
		var rate domain.CurrencyRate
		var code string
		if err := rows.Scan(&code, &rate.ToUSD, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rate.Code = domain.Currency(code)
		out = append(out, rate)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	const query = `
SELECT id, email, COALESCE(wallet_address, ''), is_admin, is_verified
FROM accounts WHERE id = $1`

	var a domain.Account
	err := r.queryRow(ctx, query, id).Scan(&a.ID, &a.Email, &a.WalletAddress, &a.Admin, &a.Verified)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Account{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *CatalogRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *CatalogRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
