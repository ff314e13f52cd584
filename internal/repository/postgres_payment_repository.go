package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db *database.PostgresDB
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(db *database.PostgresDB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `
	id, reservation_id, intent_id, amount, currency, status,
	captured_amount, refunded_amount, charge_id, refund_id,
	idempotency_key, error_code, error_message, created_at, updated_at`

// Create inserts a new payment attempt
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", p.ID),
		attribute.String("reservation_id", p.ReservationID),
		attribute.String("intent_id", p.IntentID),
	)

	query := `
		INSERT INTO payments (
			id, reservation_id, intent_id, amount, currency, status,
			captured_amount, refunded_amount, charge_id, refund_id,
			idempotency_key, error_code, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15
		)
	`

	_, err := r.db.QuerierFrom(ctx).Exec(ctx, query,
		p.ID,
		p.ReservationID,
		p.IntentID,
		p.Amount,
		p.Currency,
		string(p.Status),
		p.CapturedAmount,
		p.RefundedAmount,
		nullString(p.ChargeID),
		nullString(p.RefundID),
		p.IdempotencyKey,
		nullString(p.ErrorCode),
		nullString(p.ErrorMessage),
		p.CreatedAt,
		p.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByIntentID retrieves a payment by processor intent ID
func (r *PostgresPaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.get_by_intent_id")
	defer span.End()

	span.SetAttributes(attribute.String("intent_id", intentID))

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id = $1`

	p, err := scanPayment(r.db.QuerierFrom(ctx).QueryRow(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrPaymentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return p, nil
}

// GetCapturedByReservationID retrieves the captured payment of a reservation
func (r *PostgresPaymentRepository) GetCapturedByReservationID(ctx context.Context, reservationID string) (*domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.get_captured_by_reservation_id")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE reservation_id = $1 AND status = 'captured'
		ORDER BY updated_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.db.QuerierFrom(ctx).QueryRow(ctx, query, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrPaymentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get captured payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return p, nil
}

// Update writes the mutable payment fields back
func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.update")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", p.ID),
		attribute.String("status", string(p.Status)),
	)

	query := `
		UPDATE payments SET
			status = $2,
			captured_amount = $3,
			refunded_amount = $4,
			charge_id = $5,
			refund_id = $6,
			error_code = $7,
			error_message = $8,
			updated_at = $9
		WHERE id = $1
	`

	tag, err := r.db.QuerierFrom(ctx).Exec(ctx, query,
		p.ID,
		string(p.Status),
		p.CapturedAmount,
		p.RefundedAmount,
		nullString(p.ChargeID),
		nullString(p.RefundID),
		nullString(p.ErrorCode),
		nullString(p.ErrorMessage),
		p.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update payment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrPaymentNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func scanPayment(row scanTarget) (*domain.Payment, error) {
	p := &domain.Payment{}
	var (
		status       string
		chargeID     *string
		refundID     *string
		errorCode    *string
		errorMessage *string
	)

	err := row.Scan(
		&p.ID,
		&p.ReservationID,
		&p.IntentID,
		&p.Amount,
		&p.Currency,
		&status,
		&p.CapturedAmount,
		&p.RefundedAmount,
		&chargeID,
		&refundID,
		&p.IdempotencyKey,
		&errorCode,
		&errorMessage,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PaymentStatus(status)
	if chargeID != nil {
		p.ChargeID = *chargeID
	}
	if refundID != nil {
		p.RefundID = *refundID
	}
	if errorCode != nil {
		p.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		p.ErrorMessage = *errorMessage
	}

	return p, nil
}
