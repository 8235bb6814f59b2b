package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
	"github.com/thebeetoken/beenest-server-sub000/internal/testutil"
)

func TestEventRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewEventRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	event := func(seq int64, typ domain.EventType, bookingID string) domain.SettlementEvent {
		return domain.SettlementEvent{
			Sequence:        seq,
			Type:            typ,
			ContractAddress: "0xC0FFEE00000000000000000000000000000000EE",
			Payload: domain.RailPayload{
				BookingID:          bookingID,
				GuestWalletAddress: "0xguest",
				HostWalletAddress:  "0xhost",
				PriceDust:          "1500000000000000000000",
				CheckInSeconds:     1788998400,
				CheckOutSeconds:    1789257600,
				TxHash:             "0xfeed",
			},
			ObservedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("LatestSequence is zero on an empty log", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		seq, err := repo.LatestSequence(ctx)
		if err != nil {
			t.Fatalf("latest sequence: %v", err)
		}
		if seq != 0 {
			t.Fatalf("expected 0, got %d", seq)
		}
	})

	t.Run("AppendEvent stores the payload and folds the contract address", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.AppendEvent(ctx, event(3, domain.EventInvoice, "booking-a")); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := repo.AppendEvent(ctx, event(7, domain.EventPayout, "booking-b")); err != nil {
			t.Fatalf("append: %v", err)
		}

		seq, err := repo.LatestSequence(ctx)
		if err != nil {
			t.Fatalf("latest sequence: %v", err)
		}
		if seq != 7 {
			t.Fatalf("expected 7, got %d", seq)
		}

		var contract, bookingID string
		err = pool.QueryRow(ctx, `
SELECT contract_address, payload->>'bookingId' FROM settlement_events WHERE sequence = 3`).
			Scan(&contract, &bookingID)
		if err != nil {
			t.Fatalf("read event row: %v", err)
		}
		if contract != "0xc0ffee00000000000000000000000000000000ee" {
			t.Fatalf("expected folded contract address, got %q", contract)
		}
		if bookingID != "booking-a" {
			t.Fatalf("expected payload bookingId, got %q", bookingID)
		}
	})

	t.Run("replayed sequences leave the stored event untouched", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.AppendEvent(ctx, event(5, domain.EventInvoice, "booking-a")); err != nil {
			t.Fatalf("append: %v", err)
		}

		replay := event(5, domain.EventCancel, "booking-z")
		if err := repo.AppendEvent(ctx, replay); err != nil {
			t.Fatalf("replay append: %v", err)
		}

		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM settlement_events`).Scan(&count); err != nil {
			t.Fatalf("count events: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 event, got %d", count)
		}

		var eventType, bookingID string
		err := pool.QueryRow(ctx, `
SELECT event_type, payload->>'bookingId' FROM settlement_events WHERE sequence = 5`).
			Scan(&eventType, &bookingID)
		if err != nil {
			t.Fatalf("read event row: %v", err)
		}
		if eventType != string(domain.EventInvoice) || bookingID != "booking-a" {
			t.Fatalf("expected original event retained, got %s %s", eventType, bookingID)
		}
	})
}
