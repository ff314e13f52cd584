package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for transport mapping. Handlers never
// inspect error messages; the kind plus code fully determine the response.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindPayment
	KindInternal
)

// Error is a tagged domain error carrying a stable machine-readable code.
// Two Errors match under errors.Is when their codes are equal, so the
// sentinel instances below work with the standard errors helpers.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a domain error with the given kind and code.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Internal wraps a store or transport failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal error", Err: err}
}

// PaymentFailure wraps a processor-side failure with its processor code.
func PaymentFailure(code string, err error) *Error {
	if code == "" {
		code = "PAYMENT_FAILED"
	}
	return &Error{Kind: KindPayment, Code: code, Message: "payment processor error", Err: err}
}

// KindOf returns the kind of a domain error, or KindInternal for any error
// that did not originate in this package.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of a domain error, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}

var (
	// Not found
	ErrTimeSlotNotFound    = NewError(KindNotFound, "TIME_SLOT_NOT_FOUND", "time slot not found")
	ErrReservationNotFound = NewError(KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found")
	ErrExperienceNotFound  = NewError(KindNotFound, "EXPERIENCE_NOT_FOUND", "experience not found")
	ErrPaymentNotFound     = NewError(KindNotFound, "PAYMENT_NOT_FOUND", "payment not found")

	// Capacity and state machine conflicts. These are expected outcomes of
	// concurrent demand and are surfaced verbatim to the caller.
	ErrNotEnoughCapacity       = NewError(KindConflict, "TIME_SLOT_NOT_ENOUGH_CAPACITY", "not enough remaining capacity on time slot")
	ErrTimeSlotNotAvailable    = NewError(KindConflict, "TIME_SLOT_NOT_AVAILABLE", "time slot is not available for booking")
	ErrHoldExpired             = NewError(KindConflict, "HOLD_EXPIRED", "hold has expired")
	ErrInvalidHoldStatus       = NewError(KindConflict, "INVALID_HOLD_STATUS", "reservation is not an active hold")
	ErrInvalidStatusTransition = NewError(KindConflict, "INVALID_STATUS_TRANSITION", "reservation status does not permit this transition")
	ErrExperienceNotStarted    = NewError(KindConflict, "EXPERIENCE_NOT_STARTED", "experience starts more than one hour from now")

	// Ownership
	ErrForbiddenComplete = NewError(KindForbidden, "FORBIDDEN_COMPLETE", "host does not own the experience behind this reservation")
	ErrForbiddenUpdate   = NewError(KindForbidden, "FORBIDDEN_UPDATE", "host does not own this experience")

	// Payments
	ErrPaymentNotAuthorized = NewError(KindPayment, "PAYMENT_NOT_AUTHORIZED", "payment intent is not authorized for capture")

	// Validation
	ErrInvalidUserID         = NewError(KindValidation, "INVALID_USER_ID", "user id is required")
	ErrInvalidExperienceID   = NewError(KindValidation, "INVALID_EXPERIENCE_ID", "experience id is required")
	ErrInvalidTimeSlotID     = NewError(KindValidation, "INVALID_TIME_SLOT_ID", "time slot id is required")
	ErrInvalidReservationID  = NewError(KindValidation, "INVALID_RESERVATION_ID", "reservation id is required")
	ErrInvalidGuestCount     = NewError(KindValidation, "INVALID_GUEST_COUNT", "guest count must be greater than zero")
	ErrInvalidIdempotencyKey = NewError(KindValidation, "INVALID_IDEMPOTENCY_KEY", "idempotency key is required")
	ErrPaymentIntentMismatch = NewError(KindValidation, "PAYMENT_INTENT_MISMATCH", "payment intent does not belong to this reservation")
)
