package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebeetoken/beenest-server-sub000/internal/app"
	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const bookingColumns = `
id, listing_id, guest_id, host_id, check_in, check_out, guest_count, status,
currency, price_per_night, total, security_deposit, transaction_fee,
total_usd, credit_applied_usd, charge_id, refund_id, tx_hash,
guest_wallet_address, host_wallet_address, chain_verified_at,
approved_by, rejected_by, cancelled_by, created_at, updated_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status, currency string
	err := row.Scan(
		&b.ID, &b.ListingID, &b.GuestID, &b.HostID, &b.CheckIn, &b.CheckOut,
		&b.GuestCount, &status, &currency, &b.PricePerNight, &b.Total,
		&b.SecurityDeposit, &b.TransactionFee, &b.TotalUSD, &b.CreditAppliedUSD,
		&b.ChargeID, &b.RefundID, &b.TxHash, &b.GuestWalletAddress,
		&b.HostWalletAddress, &b.ChainVerifiedAt, &b.ApprovedBy, &b.RejectedBy,
		&b.CancelledBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.Currency = domain.Currency(currency)
	return b, nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) GetListingForUpdate(ctx context.Context, listingID string) (domain.Listing, error) {
	const query = `
SELECT id, host_id, price_per_night_usd, security_deposit_usd, max_guests, quantity, created_at
FROM listings WHERE id = $1 FOR UPDATE`
	var l domain.Listing
	err := r.queryRow(ctx, query, listingID).Scan(
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

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (
	id, listing_id, guest_id, host_id, check_in, check_out, guest_count,
	status, currency, price_per_night, total, security_deposit,
	transaction_fee, total_usd, credit_applied_usd,
	exclusive, created_at, updated_at
)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
       (l.quantity = 1), $16, $17
FROM listings l WHERE l.id = $2`

	tag, err := r.exec(ctx, stmt,
		b.ID, b.ListingID, b.GuestID, b.HostID, b.CheckIn, b.CheckOut,
		b.GuestCount, string(b.Status), string(b.Currency), b.PricePerNight,
		b.Total, b.SecurityDeposit, b.TransactionFee, b.TotalUSD,
		b.CreditAppliedUSD, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrDatesUnavailable
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// UpdateStatus advances status compare-and-set style: the write applies only
// while the row still holds the expected status, so a transition that lost a
// race surfaces as a state conflict instead of clobbering the winner. It
// stamps the matching audit column, and the bookings range-exclusion
// constraint re-fires here when an update would activate an overlapping
// hold.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, actorID string, at time.Time) error {
	audit := ""
	switch to {
	case domain.StatusHostApproved:
		audit = `, approved_by = $5`
	case domain.StatusHostRejected, domain.StatusGuestRejected, domain.StatusGuestRejectedPayment:
		audit = `, rejected_by = $5`
	case domain.StatusGuestCancelled, domain.StatusHostCancelled, domain.StatusGuestCancelInitiated:
		audit = `, cancelled_by = $5`
	}

	stmt := `UPDATE bookings SET status = $3, updated_at = $4` + audit + ` WHERE id = $1 AND status = $2`
	args := []any{id, string(from), string(to), at}
	if audit != "" {
		args = append(args, actorID)
	}

	tag, err := r.exec(ctx, stmt, args...)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrDatesUnavailable
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var actual string
		err := r.queryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&actual)
		if err == pgx.ErrNoRows {
			return domain.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		return &domain.StateConflictError{
			Op:       "update status",
			Expected: string(from),
			Actual:   actual,
		}
	}
	return nil
}

func (r *BookingRepository) SetRailRefs(ctx context.Context, id string, refs app.RailRefs) error {
	const stmt = `
UPDATE bookings SET
	charge_id = COALESCE(NULLIF($2, ''), charge_id),
	refund_id = COALESCE(NULLIF($3, ''), refund_id),
	tx_hash = COALESCE(NULLIF($4, ''), tx_hash),
	guest_wallet_address = COALESCE(NULLIF($5, ''), guest_wallet_address),
	host_wallet_address = COALESCE(NULLIF($6, ''), host_wallet_address)
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id,
		refs.ChargeID, refs.RefundID, refs.TxHash,
		refs.GuestWalletAddress, refs.HostWalletAddress,
	)
	if err != nil {
		return fmt.Errorf("set rail refs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// activeStatusPredicate renders the canonical exclusion set into SQL so the
// guard queries and domain.IsHoldActive can never disagree.
func activeStatusPredicate() (string, []any) {
	excluded := domain.InactiveHoldStatuses()
	placeholders := make([]string, len(excluded))
	args := make([]any, len(excluded))
	for i, s := range excluded {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args[i] = string(s)
	}
	return "status NOT IN (" + strings.Join(placeholders, ", ") + ")", args
}

func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, listingID string, rng domain.DateRange, excludeBookingID string) ([]domain.Booking, error) {
	predicate, statusArgs := activeStatusPredicate()
	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE listing_id = $1
  AND check_in < $2 AND check_out > $3
  AND ($` + fmt.Sprintf("%d", len(statusArgs)+4) + ` = '' OR id::text <> $` + fmt.Sprintf("%d", len(statusArgs)+4) + `)
  AND ` + predicate + `
ORDER BY check_in`

	args := append([]any{listingID, rng.End, rng.Start}, statusArgs...)
	args = append(args, excludeBookingID)

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overlapping: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan overlapping: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepository) ListBlocksOverlapping(ctx context.Context, listingID string, rng domain.DateRange) ([]domain.CalendarBlock, error) {
	const query = `
SELECT id, listing_id, starts_on, ends_on, source, created_at
FROM calendar_blocks
WHERE listing_id = $1 AND starts_on < $2 AND ends_on > $3
ORDER BY starts_on`

	rows, err := r.query(ctx, query, listingID, rng.End, rng.Start)
	if err != nil {
		return nil, fmt.Errorf("list calendar blocks: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarBlock
	for rows.Next() {
		var b domain.CalendarBlock
		if err := rows.Scan(&b.ID, &b.ListingID, &b.Range.Start, &b.Range.End, &b.Source, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListStaleStarted returns started bookings past the grace window or whose
// check-in day is already over, newest first, so repeated partial sweeps
// converge. checkInBefore is a day boundary: a booking checking in on that
// day is not yet stale.
func (r *BookingRepository) ListStaleStarted(ctx context.Context, createdBefore, checkInBefore time.Time) ([]domain.Booking, error) {
	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE status = $1 AND (created_at < $2 OR check_in < $3)
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, string(domain.StatusStarted), createdBefore, checkInBefore)
	if err != nil {
		return nil, fmt.Errorf("list stale started: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepository) ListUnverifiedChainPayments(ctx context.Context) ([]domain.Booking, error) {
	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE tx_hash <> '' AND chain_verified_at IS NULL AND status = $1
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, string(domain.StatusGuestConfirmed))
	if err != nil {
		return nil, fmt.Errorf("list unverified chain payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unverified booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepository) MarkChainVerified(ctx context.Context, ids []string, at time.Time) error {
	const stmt = `UPDATE bookings SET chain_verified_at = $2 WHERE id = ANY($1)`
	if _, err := r.exec(ctx, stmt, ids, at); err != nil {
		return fmt.Errorf("mark chain verified: %w", err)
	}
	return nil
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *BookingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
