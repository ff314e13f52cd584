package domain

import (
	"time"
)

// ReservationStatus represents the lifecycle state of a reservation
// (matches DB ENUM).
type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "held"
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusRefunded  ReservationStatus = "refunded"
)

func (s ReservationStatus) String() string { return string(s) }

// IsTerminal returns true when no further transitions are permitted.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusCompleted ||
		s == ReservationStatusCancelled ||
		s == ReservationStatusRefunded
}

// Occupying returns true when reservations in this status count toward the
// time slot's capacity. Held reservations occupy only when includeHeld is
// set by the caller.
func (s ReservationStatus) Occupying(includeHeld bool) bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed:
		return true
	case ReservationStatusHeld:
		return includeHeld
	default:
		return false
	}
}

// OccupyingStatuses lists the statuses counted toward capacity.
func OccupyingStatuses(includeHeld bool) []string {
	statuses := []string{
		string(ReservationStatusPending),
		string(ReservationStatusConfirmed),
	}
	if includeHeld {
		statuses = append(statuses, string(ReservationStatusHeld))
	}
	return statuses
}

// PaymentState is the lifecycle vocabulary the engine uses for the payment
// attached to a reservation, normalized from processor intent statuses.
type PaymentState string

const (
	PaymentStateNone           PaymentState = ""
	PaymentStatePending        PaymentState = "pending"
	PaymentStateRequiresAction PaymentState = "requires_action"
	PaymentStateAuthorized     PaymentState = "authorized"
	PaymentStateCaptured       PaymentState = "captured"
	PaymentStateRefunded       PaymentState = "refunded"
	PaymentStateFailed         PaymentState = "failed"
)

// Reservation is the central entity of the lifecycle engine. Guest contact
// fields are snapshotted at booking time so later profile edits never alter
// historical records.
type Reservation struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	ExperienceID    string            `json:"experience_id"`
	TimeSlotID      string            `json:"time_slot_id"`
	GuestCount      int               `json:"guest_count"`
	OriginalPrice   int64             `json:"original_price"`
	DiscountApplied int64             `json:"discount_applied"`
	DiscountType    string            `json:"discount_type,omitempty"`
	TotalPrice      int64             `json:"total_price"`
	Currency        string            `json:"currency"`
	Status          ReservationStatus `json:"status"`
	Reference       string            `json:"reference"`
	GuestName       string            `json:"guest_name"`
	GuestEmail      string            `json:"guest_email"`
	GuestPhone      string            `json:"guest_phone,omitempty"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	PaymentStatus   PaymentState      `json:"payment_status,omitempty"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty"`
	HoldExpiresAt   *time.Time        `json:"hold_expires_at,omitempty"`
	CancelReason    string            `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	RefundAmount    *int64            `json:"refund_amount,omitempty"`
	RefundID        string            `json:"refund_id,omitempty"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsActiveHold reports whether the reservation is a hold that has not yet
// expired at the given instant.
func (r *Reservation) IsActiveHold(now time.Time) bool {
	return r.Status == ReservationStatusHeld &&
		r.HoldExpiresAt != nil &&
		now.Before(*r.HoldExpiresAt)
}

// HoldHasExpired reports whether the reservation is a hold whose expiry has
// passed. Expiry is enforced lazily: an expired hold keeps occupying
// capacity until conversion discovers it or the sweeper releases it.
func (r *Reservation) HoldHasExpired(now time.Time) bool {
	return r.Status == ReservationStatusHeld &&
		r.HoldExpiresAt != nil &&
		now.After(*r.HoldExpiresAt)
}

// BelongsToUser verifies ownership of the reservation.
func (r *Reservation) BelongsToUser(userID string) bool {
	return r.UserID == userID
}

// CanTransitionTo reports whether the state machine permits moving to the
// target status: held → pending → confirmed → completed, with cancellation
// from any non-terminal state and refunded only out of confirmed.
func (r *Reservation) CanTransitionTo(target ReservationStatus) bool {
	if r.Status.IsTerminal() {
		return false
	}
	switch target {
	case ReservationStatusPending:
		return r.Status == ReservationStatusHeld
	case ReservationStatusConfirmed:
		return r.Status == ReservationStatusPending
	case ReservationStatusCompleted:
		return r.Status == ReservationStatusConfirmed
	case ReservationStatusCancelled:
		return true
	case ReservationStatusRefunded:
		return r.Status == ReservationStatusConfirmed
	default:
		return false
	}
}

// MarkConverted moves a hold to pending and clears the hold expiry so the
// holdExpiresAt ⇔ held invariant is preserved.
func (r *Reservation) MarkConverted(intentID string, state PaymentState, now time.Time) {
	r.Status = ReservationStatusPending
	r.HoldExpiresAt = nil
	r.PaymentIntentID = intentID
	r.PaymentStatus = state
	r.UpdatedAt = now
}

// MarkConfirmed records a successful capture.
func (r *Reservation) MarkConfirmed(now time.Time) {
	r.Status = ReservationStatusConfirmed
	r.PaymentStatus = PaymentStateCaptured
	r.ConfirmedAt = &now
	r.UpdatedAt = now
}

// MarkCancelled records a cancellation, optionally with a refund.
func (r *Reservation) MarkCancelled(reason string, refundAmount *int64, refundID string, now time.Time) {
	if refundAmount != nil {
		r.Status = ReservationStatusRefunded
		r.RefundAmount = refundAmount
		r.RefundID = refundID
		r.PaymentStatus = PaymentStateRefunded
	} else {
		r.Status = ReservationStatusCancelled
	}
	r.CancelReason = reason
	r.CancelledAt = &now
	r.UpdatedAt = now
}

// MarkCompleted records host-side completion.
func (r *Reservation) MarkCompleted(now time.Time) {
	r.Status = ReservationStatusCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
}
