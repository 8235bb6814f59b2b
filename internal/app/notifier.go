package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// Notifier is the outbound notification collaborator. Delivery is
// best-effort: callers log failures and never let them fail the triggering
// operation.
type Notifier interface {
	BookingNotice(ctx context.Context, kind string, b domain.Booking) error
	ReconciliationMismatch(ctx context.Context, bookingID string, mismatches domain.MismatchSet) error
}

// LogNotifier routes notifications to the structured log. It stands in for
// the real email collaborator in development and tests.
type LogNotifier struct{}

func (LogNotifier) BookingNotice(_ context.Context, kind string, b domain.Booking) error {
	zap.L().Info("booking notice",
		zap.String("kind", kind),
		zap.String("booking_id", b.ID),
		zap.String("status", string(b.Status)))
	return nil
}

func (LogNotifier) ReconciliationMismatch(_ context.Context, bookingID string, mismatches domain.MismatchSet) error {
	fields := []zap.Field{zap.String("booking_id", bookingID)}
	for name, m := range mismatches {
		fields = append(fields, zap.String(name, "emitted="+m.Emitted+" booked="+m.Booked))
	}
	zap.L().Warn("reconciliation mismatch", fields...)
	return nil
}

// notify wraps a notifier call with the best-effort contract.
func notify(ctx context.Context, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		zap.L().Warn("notification delivery failed", zap.Error(err))
	}
}
