package domain

import "time"

// EventType identifies a lifecycle transition in the reservation event log.
// The enum is open: webhooks and future features may append types without a
// schema change.
type EventType string

const (
	EventHoldCreated          EventType = "hold_created"
	EventHoldConverted        EventType = "hold_converted"
	EventHoldExpired          EventType = "hold_expired"
	EventReservationCreated   EventType = "reservation_created"
	EventReservationConfirmed EventType = "reservation_confirmed"
	EventReservationCancelled EventType = "reservation_cancelled"
	EventReservationCompleted EventType = "reservation_completed"
	EventIncidentReported     EventType = "incident_reported"
	EventPaymentAuthorized    EventType = "payment_authorized"
	EventPaymentSucceeded     EventType = "payment_succeeded"
	EventPaymentFailed        EventType = "payment_failed"
)

// EventSource identifies which surface produced an event.
type EventSource string

const (
	SourceAPI     EventSource = "api"
	SourceWebhook EventSource = "webhook"
	SourceAdmin   EventSource = "admin"
	SourceSystem  EventSource = "system"
)

// ActorSystem is the actor recorded for events not attributable to a user.
const ActorSystem = "system"

// ReservationEvent is one immutable row of the append-only lifecycle log.
// Rows are written in the same transaction as the state change they
// describe, never updated or deleted; the ordered sequence per reservation
// reconstructs its status history.
type ReservationEvent struct {
	ID            int64          `json:"id"`
	ReservationID string         `json:"reservation_id"`
	Type          EventType      `json:"type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Actor         string         `json:"actor"`
	Source        EventSource    `json:"source"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewReservationEvent builds an event row; the repository assigns ID and
// CreatedAt on insert.
func NewReservationEvent(reservationID string, t EventType, payload map[string]any, actor string, source EventSource) *ReservationEvent {
	if actor == "" {
		actor = ActorSystem
	}
	return &ReservationEvent{
		ReservationID: reservationID,
		Type:          t,
		Payload:       payload,
		Actor:         actor,
		Source:        source,
	}
}
