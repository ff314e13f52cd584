package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment attempt (matches DB ENUM).
type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusAuthorized     PaymentStatus = "authorized"
	PaymentStatusCaptured       PaymentStatus = "captured"
	PaymentStatusRefunded       PaymentStatus = "refunded"
	PaymentStatusFailed         PaymentStatus = "failed"
	PaymentStatusCanceled       PaymentStatus = "canceled"
)

// Payment is one payment-intent attempt for a reservation. A reservation may
// carry several rows only when a prior attempt failed or was superseded; at
// most one row per reservation may be in a non-terminal state (enforced by a
// partial unique index).
type Payment struct {
	ID             string        `json:"id"`
	ReservationID  string        `json:"reservation_id"`
	IntentID       string        `json:"intent_id"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Status         PaymentStatus `json:"status"`
	CapturedAmount int64         `json:"captured_amount"`
	RefundedAmount int64         `json:"refunded_amount"`
	ChargeID       string        `json:"charge_id,omitempty"`
	RefundID       string        `json:"refund_id,omitempty"`
	IdempotencyKey string        `json:"idempotency_key"`
	ErrorCode      string        `json:"error_code,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewPayment creates a pending payment row for a freshly created intent.
func NewPayment(reservationID, intentID string, amount int64, currency, idempotencyKey string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:             uuid.New().String(),
		ReservationID:  reservationID,
		IntentID:       intentID,
		Amount:         amount,
		Currency:       currency,
		Status:         PaymentStatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsFinal returns true if the payment is in a terminal state.
func (p *Payment) IsFinal() bool {
	return p.Status == PaymentStatusCaptured ||
		p.Status == PaymentStatusRefunded ||
		p.Status == PaymentStatusFailed ||
		p.Status == PaymentStatusCanceled
}

// MarkAuthorized records that the intent reached requires_capture.
func (p *Payment) MarkAuthorized() {
	p.Status = PaymentStatusAuthorized
	p.UpdatedAt = time.Now().UTC()
}

// MarkRequiresAction records that the intent needs client-side authentication.
func (p *Payment) MarkRequiresAction() {
	p.Status = PaymentStatusRequiresAction
	p.UpdatedAt = time.Now().UTC()
}

// MarkCaptured records a successful capture with the resulting charge.
func (p *Payment) MarkCaptured(amount int64, chargeID string) {
	p.Status = PaymentStatusCaptured
	p.CapturedAmount = amount
	p.ChargeID = chargeID
	p.UpdatedAt = time.Now().UTC()
}

// MarkRefunded records a refund against the captured amount.
func (p *Payment) MarkRefunded(amount int64, refundID string) {
	p.Status = PaymentStatusRefunded
	p.RefundedAmount = amount
	p.RefundID = refundID
	p.UpdatedAt = time.Now().UTC()
}

// MarkFailed records a processor-side failure.
func (p *Payment) MarkFailed(errorCode, errorMessage string) {
	p.Status = PaymentStatusFailed
	p.ErrorCode = errorCode
	p.ErrorMessage = errorMessage
	p.UpdatedAt = time.Now().UTC()
}

// MarkCanceled records that the intent was voided before capture.
func (p *Payment) MarkCanceled() {
	p.Status = PaymentStatusCanceled
	p.UpdatedAt = time.Now().UTC()
}
