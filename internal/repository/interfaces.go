package repository

import (
	"context"
	"time"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
)

// TxManager runs a function inside a single database transaction. All
// repository calls made with the supplied context join that transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeSlotRepository accesses bookable time slots
type TimeSlotRepository interface {
	// GetByID retrieves a slot without locking
	GetByID(ctx context.Context, id string) (*domain.TimeSlot, error)
	// LockForUpdate retrieves a slot under an exclusive row lock. Must be
	// called inside a transaction; concurrent bookers on the same slot
	// serialize here.
	LockForUpdate(ctx context.Context, id string) (*domain.TimeSlot, error)
	// OccupiedGuestCount sums guest counts of reservations on the slot in
	// the given statuses
	OccupiedGuestCount(ctx context.Context, slotID string, statuses []string) (int, error)
}

// HostListFilter narrows the host reservation listing
type HostListFilter struct {
	Status       domain.ReservationStatus
	ExperienceID string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// ReservationRepository accesses reservations
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	// GetByIdempotencyKey returns (nil, nil) when no reservation carries
	// the key for this user
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Reservation, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Reservation, error)
	Update(ctx context.Context, r *domain.Reservation) error
	// ListExpiredHolds returns held reservations whose expiry has passed
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
	// ListForHost returns one page of reservations across all experiences
	// of a host, plus the total number of rows matching the filter
	ListForHost(ctx context.Context, hostID string, filter HostListFilter) ([]*domain.HostReservation, int, error)
}

// PaymentRepository accesses payment attempts
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
	// GetCapturedByReservationID returns the captured payment for a
	// reservation, needed to size refunds
	GetCapturedByReservationID(ctx context.Context, reservationID string) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
}

// EventRepository appends to and reads the reservation event log
type EventRepository interface {
	// Append inserts one immutable event row
	Append(ctx context.Context, e *domain.ReservationEvent) error
	// ListByReservationID returns the event log in insertion order
	ListByReservationID(ctx context.Context, reservationID string) ([]*domain.ReservationEvent, error)
}

// ExperienceRepository reads the experience fields the engine needs
type ExperienceRepository interface {
	GetPricing(ctx context.Context, experienceID string) (*domain.ExperiencePricing, error)
	IsOwnedBy(ctx context.Context, experienceID, hostID string) (bool, error)
}
