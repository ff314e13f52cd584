package domain

import "time"

// TimeSlotStatus represents the availability of a time slot (matches DB ENUM).
type TimeSlotStatus string

const (
	TimeSlotStatusAvailable   TimeSlotStatus = "available"
	TimeSlotStatusUnavailable TimeSlotStatus = "unavailable"
)

// TimeSlot is a bookable occurrence of an experience. The sum of guest
// counts across non-terminal reservations referencing a slot must never
// exceed MaxCapacity; the slot row is mutated and read for capacity
// decisions only while an exclusive row lock is held.
type TimeSlot struct {
	ID           string         `json:"id"`
	ExperienceID string         `json:"experience_id"`
	StartsAt     time.Time      `json:"starts_at"`
	MaxCapacity  int            `json:"max_capacity"`
	Status       TimeSlotStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsAvailable reports whether the slot accepts new reservations.
func (t *TimeSlot) IsAvailable() bool {
	return t.Status == TimeSlotStatusAvailable
}

// HasCapacityFor reports whether requested guests fit next to the already
// occupied count.
func (t *TimeSlot) HasCapacityFor(occupied, requested int) bool {
	return occupied+requested <= t.MaxCapacity
}
