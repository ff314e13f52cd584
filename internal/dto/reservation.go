package dto

import (
	"time"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
)

// GuestDetailsRequest is the contact snapshot sent with a booking request
type GuestDetailsRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone,omitempty"`
}

// CreateHoldRequest represents request to place a capacity hold
type CreateHoldRequest struct {
	ExperienceID string              `json:"experience_id" binding:"required"`
	TimeSlotID   string              `json:"time_slot_id" binding:"required"`
	GuestCount   int                 `json:"guest_count" binding:"required,min=1,max=20"`
	Guest        GuestDetailsRequest `json:"guest" binding:"required"`
}

// CreateReservationRequest represents request to book directly with payment
type CreateReservationRequest struct {
	ExperienceID string              `json:"experience_id" binding:"required"`
	TimeSlotID   string              `json:"time_slot_id" binding:"required"`
	GuestCount   int                 `json:"guest_count" binding:"required,min=1,max=20"`
	Guest        GuestDetailsRequest `json:"guest" binding:"required"`

	// Saved-card flow; omit both for client-side confirmation
	CustomerID      string `json:"customer_id,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

// ConvertHoldRequest represents request to attach payment to a hold
type ConvertHoldRequest struct {
	CustomerID      string `json:"customer_id,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

// CancelReservationRequest represents request to cancel a reservation.
// Refund requests a full refund of a captured payment; it has no effect on
// holds or pending reservations.
type CancelReservationRequest struct {
	Reason string `json:"reason,omitempty"`
	Refund bool   `json:"refund,omitempty"`
}

// ConfirmReservationRequest optionally pins the payment intent the host
// expects to capture
type ConfirmReservationRequest struct {
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// CompleteReservationRequest carries the host's record of how the
// experience ran
type CompleteReservationRequest struct {
	GuestsAttended int    `json:"guests_attended,omitempty"`
	NoShow         bool   `json:"no_show,omitempty"`
	HostNotes      string `json:"host_notes,omitempty"`
	Incident       string `json:"incident,omitempty"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	ExperienceID    string     `json:"experience_id"`
	TimeSlotID      string     `json:"time_slot_id"`
	GuestCount      int        `json:"guest_count"`
	Status          string     `json:"status"`
	OriginalPrice   int64      `json:"original_price"`
	DiscountApplied int64      `json:"discount_applied"`
	DiscountType    string     `json:"discount_type,omitempty"`
	TotalPrice      int64      `json:"total_price"`
	Currency        string     `json:"currency"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	PaymentStatus   string     `json:"payment_status,omitempty"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	RefundAmount    *int64     `json:"refund_amount,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// Booking flow fields. ClientSecret lets the guest confirm the payment
	// intent; Duplicate marks an idempotent replay.
	ClientSecret        string `json:"client_secret,omitempty"`
	RequiresAction      bool   `json:"requires_action,omitempty"`
	Duplicate           bool   `json:"duplicate,omitempty"`
	HoldDurationMinutes int    `json:"hold_duration_minutes,omitempty"`
}

// FromReservation converts a domain reservation to its API shape
func FromReservation(r *domain.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:              r.ID,
		Reference:       r.Reference,
		ExperienceID:    r.ExperienceID,
		TimeSlotID:      r.TimeSlotID,
		GuestCount:      r.GuestCount,
		Status:          string(r.Status),
		OriginalPrice:   r.OriginalPrice,
		DiscountApplied: r.DiscountApplied,
		DiscountType:    r.DiscountType,
		TotalPrice:      r.TotalPrice,
		Currency:        r.Currency,
		PaymentIntentID: r.PaymentIntentID,
		PaymentStatus:   string(r.PaymentStatus),
		HoldExpiresAt:   r.HoldExpiresAt,
		CancelReason:    r.CancelReason,
		RefundAmount:    r.RefundAmount,
		ConfirmedAt:     r.ConfirmedAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

// FromBookingResult converts a booking outcome to its API shape
func FromBookingResult(r *service.BookingResult) *ReservationResponse {
	resp := FromReservation(r.Reservation)
	resp.ClientSecret = r.ClientSecret
	resp.RequiresAction = r.RequiresAction
	resp.Duplicate = r.Duplicate
	resp.HoldDurationMinutes = r.HoldDurationMinutes
	return resp
}

// HostReservationResponse represents one row of the host-facing listing
type HostReservationResponse struct {
	ReservationResponse
	ExperienceTitle string    `json:"experience_title"`
	SlotStartsAt    time.Time `json:"slot_starts_at"`
	GuestName       string    `json:"guest_name"`
	GuestEmail      string    `json:"guest_email"`
	GuestPhone      string    `json:"guest_phone,omitempty"`
}

// FromHostReservation converts a host listing row to its API shape
func FromHostReservation(r *domain.HostReservation) *HostReservationResponse {
	return &HostReservationResponse{
		ReservationResponse: *FromReservation(&r.Reservation),
		ExperienceTitle:     r.ExperienceTitle,
		SlotStartsAt:        r.SlotStartsAt,
		GuestName:           r.GuestName,
		GuestEmail:          r.GuestEmail,
		GuestPhone:          r.GuestPhone,
	}
}

// FromHostReservations converts a listing batch
func FromHostReservations(rows []*domain.HostReservation) []*HostReservationResponse {
	out := make([]*HostReservationResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromHostReservation(r))
	}
	return out
}

// HostReservationListResponse is the host listing envelope. Total counts
// every row matching the filter, not just the returned page.
type HostReservationListResponse struct {
	Reservations []*HostReservationResponse `json:"reservations"`
	Total        int                        `json:"total"`
}

// EventResponse represents one entry of the reservation lifecycle log
type EventResponse struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Actor     string         `json:"actor"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromEvents converts the lifecycle log to its API shape
func FromEvents(events []*domain.ReservationEvent) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, &EventResponse{
			ID:        e.ID,
			Type:      string(e.Type),
			Payload:   e.Payload,
			Actor:     e.Actor,
			Source:    string(e.Source),
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
