package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// PostgresReservationRepository implements ReservationRepository using PostgreSQL
type PostgresReservationRepository struct {
	db *database.PostgresDB
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository
func NewPostgresReservationRepository(db *database.PostgresDB) *PostgresReservationRepository {
	return &PostgresReservationRepository{db: db}
}

const reservationColumns = `
	id, user_id, experience_id, time_slot_id, guest_count,
	original_price, discount_applied, discount_type, total_price, currency,
	status, reference, guest_name, guest_email, guest_phone,
	payment_intent_id, payment_status, idempotency_key, hold_expires_at,
	cancel_reason, cancelled_at, refund_amount, refund_id,
	confirmed_at, completed_at, created_at, updated_at`

const hostReservationColumns = `
	r.id, r.user_id, r.experience_id, r.time_slot_id, r.guest_count,
	r.original_price, r.discount_applied, r.discount_type, r.total_price, r.currency,
	r.status, r.reference, r.guest_name, r.guest_email, r.guest_phone,
	r.payment_intent_id, r.payment_status, r.idempotency_key, r.hold_expires_at,
	r.cancel_reason, r.cancelled_at, r.refund_amount, r.refund_id,
	r.confirmed_at, r.completed_at, r.created_at, r.updated_at`

// Create inserts a new reservation row
func (r *PostgresReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("user_id", res.UserID),
		attribute.String("time_slot_id", res.TimeSlotID),
		attribute.String("status", res.Status.String()),
	)

	query := `
		INSERT INTO reservations (
			id, user_id, experience_id, time_slot_id, guest_count,
			original_price, discount_applied, discount_type, total_price, currency,
			status, reference, guest_name, guest_email, guest_phone,
			payment_intent_id, payment_status, idempotency_key, hold_expires_at,
			cancel_reason, cancelled_at, refund_amount, refund_id,
			confirmed_at, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27
		)
	`

	_, err := r.db.QuerierFrom(ctx).Exec(ctx, query,
		res.ID,
		res.UserID,
		res.ExperienceID,
		res.TimeSlotID,
		res.GuestCount,
		res.OriginalPrice,
		res.DiscountApplied,
		nullString(res.DiscountType),
		res.TotalPrice,
		res.Currency,
		res.Status.String(),
		res.Reference,
		res.GuestName,
		res.GuestEmail,
		nullString(res.GuestPhone),
		nullString(res.PaymentIntentID),
		nullString(string(res.PaymentStatus)),
		nullString(res.IdempotencyKey),
		res.HoldExpiresAt,
		nullString(res.CancelReason),
		res.CancelledAt,
		res.RefundAmount,
		nullString(res.RefundID),
		res.ConfirmedAt,
		res.CompletedAt,
		res.CreatedAt,
		res.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a reservation by its ID
func (r *PostgresReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.db.QuerierFrom(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// GetByIdempotencyKey retrieves a reservation by user and idempotency key.
// Returns (nil, nil) when the key has never been used so callers can
// distinguish first use from replay.
func (r *PostgresReservationRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_by_idempotency_key")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 AND idempotency_key = $2`

	res, err := scanReservation(r.db.QuerierFrom(ctx).QueryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation by idempotency key: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// GetByPaymentIntentID retrieves the reservation attached to a payment intent
func (r *PostgresReservationRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_by_payment_intent_id")
	defer span.End()

	span.SetAttributes(attribute.String("payment_intent_id", intentID))

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE payment_intent_id = $1`

	res, err := scanReservation(r.db.QuerierFrom(ctx).QueryRow(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation by payment intent: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Update writes the mutable reservation fields back
func (r *PostgresReservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.update")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("status", res.Status.String()),
	)

	query := `
		UPDATE reservations SET
			status = $2,
			payment_intent_id = $3,
			payment_status = $4,
			hold_expires_at = $5,
			cancel_reason = $6,
			cancelled_at = $7,
			refund_amount = $8,
			refund_id = $9,
			confirmed_at = $10,
			completed_at = $11,
			updated_at = $12
		WHERE id = $1
	`

	tag, err := r.db.QuerierFrom(ctx).Exec(ctx, query,
		res.ID,
		res.Status.String(),
		nullString(res.PaymentIntentID),
		nullString(string(res.PaymentStatus)),
		res.HoldExpiresAt,
		nullString(res.CancelReason),
		res.CancelledAt,
		res.RefundAmount,
		nullString(res.RefundID),
		res.ConfirmedAt,
		res.CompletedAt,
		res.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrReservationNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListExpiredHolds returns held reservations whose expiry has passed,
// oldest first, capped at limit
func (r *PostgresReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_expired_holds")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'held' AND hold_expires_at < $1
		ORDER BY hold_expires_at ASC
		LIMIT $2
	`

	rows, err := r.db.QuerierFrom(ctx).Query(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate expired holds: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(reservations)))
	span.SetStatus(codes.Ok, "")
	return reservations, nil
}

// ListForHost returns one page of reservations across every experience of
// the host, joined with slot and experience data, plus the total number of
// matching rows (via a window count, so pagination needs no second query).
// Guest contact fields come from the reservation snapshot; users.id is
// attached when an account with the snapshot email exists.
func (r *PostgresReservationRepository) ListForHost(ctx context.Context, hostID string, filter HostListFilter) ([]*domain.HostReservation, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_for_host")
	defer span.End()

	span.SetAttributes(attribute.String("host_id", hostID))

	query := `
		SELECT ` + hostReservationColumns + `,
			e.title, ts.starts_at, u.id, count(*) OVER() AS total
		FROM reservations r
		JOIN experiences e ON e.id = r.experience_id
		JOIN time_slots ts ON ts.id = r.time_slot_id
		LEFT JOIN users u ON u.email = r.guest_email
		WHERE e.host_id = $1
	`

	args := []any{hostID}
	idx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND r.status = $%d", idx)
		args = append(args, filter.Status.String())
		idx++
	}
	if filter.ExperienceID != "" {
		query += fmt.Sprintf(" AND r.experience_id = $%d", idx)
		args = append(args, filter.ExperienceID)
		idx++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND ts.starts_at >= $%d", idx)
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND ts.starts_at < $%d", idx)
		args = append(args, *filter.To)
		idx++
	}

	query += " ORDER BY ts.starts_at DESC, r.created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QuerierFrom(ctx).Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to list host reservations: %w", err)
	}
	defer rows.Close()

	var result []*domain.HostReservation
	total := 0
	for rows.Next() {
		hr, err := scanHostReservation(rows, &total)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, 0, fmt.Errorf("failed to scan host reservation: %w", err)
		}
		result = append(result, hr)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to iterate host reservations: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(result)), attribute.Int("total", total))
	span.SetStatus(codes.Ok, "")
	return result, total, nil
}

// scanTarget is satisfied by both pgx.Row and pgx.Rows
type scanTarget interface {
	Scan(dest ...any) error
}

func scanReservationInto(row scanTarget, res *domain.Reservation, extra ...any) error {
	var (
		status          string
		discountType    *string
		guestPhone      *string
		paymentIntentID *string
		paymentStatus   *string
		idempotencyKey  *string
		cancelReason    *string
		refundID        *string
	)

	dest := []any{
		&res.ID,
		&res.UserID,
		&res.ExperienceID,
		&res.TimeSlotID,
		&res.GuestCount,
		&res.OriginalPrice,
		&res.DiscountApplied,
		&discountType,
		&res.TotalPrice,
		&res.Currency,
		&status,
		&res.Reference,
		&res.GuestName,
		&res.GuestEmail,
		&guestPhone,
		&paymentIntentID,
		&paymentStatus,
		&idempotencyKey,
		&res.HoldExpiresAt,
		&cancelReason,
		&res.CancelledAt,
		&res.RefundAmount,
		&refundID,
		&res.ConfirmedAt,
		&res.CompletedAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	res.Status = domain.ReservationStatus(status)
	if discountType != nil {
		res.DiscountType = *discountType
	}
	if guestPhone != nil {
		res.GuestPhone = *guestPhone
	}
	if paymentIntentID != nil {
		res.PaymentIntentID = *paymentIntentID
	}
	if paymentStatus != nil {
		res.PaymentStatus = domain.PaymentState(*paymentStatus)
	}
	if idempotencyKey != nil {
		res.IdempotencyKey = *idempotencyKey
	}
	if cancelReason != nil {
		res.CancelReason = *cancelReason
	}
	if refundID != nil {
		res.RefundID = *refundID
	}

	return nil
}

func scanReservation(row scanTarget) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	if err := scanReservationInto(row, res); err != nil {
		return nil, err
	}
	return res, nil
}

func scanHostReservation(row scanTarget, total *int) (*domain.HostReservation, error) {
	hr := &domain.HostReservation{}
	err := scanReservationInto(row, &hr.Reservation,
		&hr.ExperienceTitle,
		&hr.SlotStartsAt,
		&hr.LinkedUserID,
		total,
	)
	if err != nil {
		return nil, err
	}
	return hr, nil
}

// nullString maps "" to SQL NULL
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
