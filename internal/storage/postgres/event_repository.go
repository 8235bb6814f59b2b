package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// EventRepository persists the append-only settlement-event log. Rows are
// never mutated; the table exists for the latest-sequence read and audit
// replay.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// AppendEvent is idempotent on sequence: replays hit ON CONFLICT DO NOTHING
// and leave the stored payload untouched.
func (r *EventRepository) AppendEvent(ctx context.Context, ev domain.SettlementEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	const stmt = `
INSERT INTO settlement_events (sequence, event_type, contract_address, payload, observed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sequence) DO NOTHING`

	if _, err := r.exec(ctx, stmt,
		ev.Sequence, string(ev.Type), domain.FoldAddress(ev.ContractAddress),
		payload, ev.ObservedAt,
	); err != nil {
		return fmt.Errorf("append settlement event: %w", err)
	}
	return nil
}

// LatestSequence returns 0 when no events have been observed.
func (r *EventRepository) LatestSequence(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(sequence), 0) FROM settlement_events`
	var seq int64
	if err := r.queryRow(ctx, query).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest sequence: %w", err)
	}
	return seq, nil
}

func (r *EventRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *EventRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
