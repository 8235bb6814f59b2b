package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// LogCardGateway fabricates charge and refund identifiers instead of calling
// a processor. It stands in for the card network in local and test
// deployments.
type LogCardGateway struct {
	logger *zap.Logger
}

func NewLogCardGateway(logger *zap.Logger) *LogCardGateway {
	if logger == nil {
		logger = zap.L()
	}
	return &LogCardGateway{logger: logger}
}

func (g *LogCardGateway) Charge(_ context.Context, b domain.Booking, source string) (string, error) {
	chargeID := "ch_" + newID()
	g.logger.Info("card charge",
		zap.String("booking_id", b.ID),
		zap.String("charge_id", chargeID),
		zap.String("source", source),
		zap.String("amount", b.Total.String()),
		zap.String("currency", string(b.Currency)))
	return chargeID, nil
}

func (g *LogCardGateway) Refund(_ context.Context, chargeID string, amount decimal.Decimal) (string, error) {
	refundID := "re_" + newID()
	g.logger.Info("card refund",
		zap.String("charge_id", chargeID),
		zap.String("refund_id", refundID),
		zap.String("amount", amount.String()))
	return refundID, nil
}
