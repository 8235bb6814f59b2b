package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
	"github.com/thebeetoken/beenest-server-sub000/internal/testutil"
)

func TestCatalogRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCatalogRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetListing returns the listing or ErrListingNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		hostID := testutil.InsertAccount(t, ctx, pool, "host@example.com", false)
		testutil.InsertListing(t, ctx, pool, "partner-suite-9", hostID, decimal.NewFromInt(80), decimal.NewFromInt(200), 6, 2)

		l, err := repo.GetListing(ctx, "partner-suite-9")
		if err != nil {
			t.Fatalf("get listing: %v", err)
		}
		if l.HostID != hostID || l.MaxGuests != 6 || l.Quantity != 2 {
			t.Fatalf("unexpected listing: %+v", l)
		}
		if !l.PricePerNightUSD.Equal(decimal.NewFromInt(80)) || !l.SecurityDepositUSD.Equal(decimal.NewFromInt(200)) {
			t.Fatalf("unexpected pricing: %+v", l)
		}

		if _, err := repo.GetListing(ctx, "partner-missing"); err != domain.ErrListingNotFound {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
	})

	t.Run("ListRates returns the seeded conversion table", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedRates(t, ctx, pool)

		rates, err := repo.ListRates(ctx)
		if err != nil {
			t.Fatalf("list rates: %v", err)
		}
		if len(rates) != 3 {
			t.Fatalf("expected 3 rates, got %d", len(rates))
		}

		byCode := make(map[domain.Currency]decimal.Decimal, len(rates))
		for _, r := range rates {
			byCode[r.Code] = r.ToUSD
		}
		if !byCode[domain.CurrencyUSD].Equal(decimal.NewFromInt(1)) {
			t.Fatalf("expected USD rate 1, got %s", byCode[domain.CurrencyUSD])
		}
		if !byCode[domain.CurrencyBEE].Equal(decimal.NewFromFloat(0.02)) {
			t.Fatalf("expected BEE rate 0.02, got %s", byCode[domain.CurrencyBEE])
		}
	})

	t.Run("GetAccount maps identity and error cases", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		adminID := testutil.InsertAccount(t, ctx, pool, "ops@example.com", true)

		a, err := repo.GetAccount(ctx, adminID)
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		if a.Email != "ops@example.com" || !a.Admin || !a.Verified || a.WalletAddress == "" {
			t.Fatalf("unexpected account: %+v", a)
		}

		if _, err := repo.GetAccount(ctx, uuid.NewString()); err != domain.ErrAccountNotFound {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		if _, err := repo.GetAccount(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
