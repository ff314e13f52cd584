package domain

import "time"

// DiscountRules is the discount configuration of an experience. Percentages
// are whole integers; a zero percentage disables the rule.
type DiscountRules struct {
	Group3PlusPercent int `json:"group_3_plus_percent"`
	Group5PlusPercent int `json:"group_5_plus_percent"`
	EarlyBirdPercent  int `json:"early_bird_percent"`
	EarlyBirdMinDays  int `json:"early_bird_min_days"`
}

// ExperiencePricing is the slice of the experience record the reservation
// engine touches: ownership for host checks and the inputs to pricing.
type ExperiencePricing struct {
	ExperienceID  string        `json:"experience_id"`
	HostID        string        `json:"host_id"`
	Title         string        `json:"title"`
	PricePerGuest int64         `json:"price_per_guest"`
	Currency      string        `json:"currency"`
	Discounts     DiscountRules `json:"discounts"`
}

// HostReservation is one row of the host-facing reservation listing: the
// reservation joined with its slot and experience, with guest contact
// fields substituted from the reservation's own snapshot when no linked
// user account exists.
type HostReservation struct {
	Reservation
	ExperienceTitle string    `json:"experience_title"`
	SlotStartsAt    time.Time `json:"slot_starts_at"`
	LinkedUserID    *string   `json:"linked_user_id,omitempty"`
}
