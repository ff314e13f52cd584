package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// CapacityGuard performs the lock-then-count capacity check. It must run
// inside the caller's transaction: the FOR UPDATE lock it takes is what
// serializes concurrent bookers, and it is only released at commit.
type CapacityGuard struct {
	timeSlots repository.TimeSlotRepository
}

// NewCapacityGuard creates a CapacityGuard
func NewCapacityGuard(timeSlots repository.TimeSlotRepository) *CapacityGuard {
	return &CapacityGuard{timeSlots: timeSlots}
}

// CapacityCheck is the result of a successful capacity check
type CapacityCheck struct {
	Slot          *domain.TimeSlot
	OccupiedCount int
}

// Check locks the slot, verifies it is open for booking and that the
// requested guests fit next to the current occupancy. Active holds count
// toward occupancy; expired ones are excluded by the sweeper having
// released them or by conversion failing on them, never by this query.
func (g *CapacityGuard) Check(ctx context.Context, slotID string, guestCount int, includeHeld bool) (*CapacityCheck, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.capacity.check")
	defer span.End()

	span.SetAttributes(
		attribute.String("time_slot_id", slotID),
		attribute.Int("guest_count", guestCount),
	)

	slot, err := g.timeSlots.LockForUpdate(ctx, slotID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !slot.IsAvailable() {
		span.SetStatus(codes.Error, "slot not available")
		return nil, domain.ErrTimeSlotNotAvailable
	}

	occupied, err := g.timeSlots.OccupiedGuestCount(ctx, slotID, domain.OccupyingStatuses(includeHeld))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("occupied", occupied),
		attribute.Int("max_capacity", slot.MaxCapacity),
	)

	if !slot.HasCapacityFor(occupied, guestCount) {
		span.SetStatus(codes.Error, "not enough capacity")
		return nil, domain.ErrNotEnoughCapacity
	}

	span.SetStatus(codes.Ok, "")
	return &CapacityCheck{Slot: slot, OccupiedCount: occupied}, nil
}
