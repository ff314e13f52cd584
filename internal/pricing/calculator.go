// Package pricing computes reservation totals from the experience's
// per-guest price and discount configuration. All math is integer minor
// units so identical inputs always produce byte-identical quotes, which the
// idempotency replay verification depends on.
package pricing

import (
	"strings"
	"time"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
)

// Discount type tags recorded on the reservation. DiscountType joins every
// applied tag so the breakdown stays auditable.
const (
	TagGroup3Plus = "group_3_plus"
	TagGroup5Plus = "group_5_plus"
	TagEarlyBird  = "early_bird"
)

// Input are the pricing inputs for one reservation request.
type Input struct {
	PricePerGuest int64
	GuestCount    int
	Discounts     domain.DiscountRules
	SlotStartsAt  time.Time
	Now           time.Time
}

// Quote is the priced result. TotalPrice = OriginalPrice - DiscountApplied.
type Quote struct {
	OriginalPrice   int64  `json:"original_price"`
	TotalPrice      int64  `json:"total_price"`
	DiscountApplied int64  `json:"discount_applied"`
	DiscountType    string `json:"discount_type,omitempty"`
}

// Calculate prices a request. Group and early-bird discounts stack
// additively; when both group tiers qualify only the higher tier applies.
func Calculate(in Input) Quote {
	original := in.PricePerGuest * int64(in.GuestCount)

	pct := 0
	var tags []string

	if in.Discounts.Group5PlusPercent > 0 && in.GuestCount >= 5 {
		pct += in.Discounts.Group5PlusPercent
		tags = append(tags, TagGroup5Plus)
	} else if in.Discounts.Group3PlusPercent > 0 && in.GuestCount >= 3 {
		pct += in.Discounts.Group3PlusPercent
		tags = append(tags, TagGroup3Plus)
	}

	if in.Discounts.EarlyBirdPercent > 0 && in.Discounts.EarlyBirdMinDays > 0 {
		threshold := time.Duration(in.Discounts.EarlyBirdMinDays) * 24 * time.Hour
		if in.SlotStartsAt.Sub(in.Now) >= threshold {
			pct += in.Discounts.EarlyBirdPercent
			tags = append(tags, TagEarlyBird)
		}
	}

	if pct > 100 {
		pct = 100
	}

	discount := original * int64(pct) / 100

	return Quote{
		OriginalPrice:   original,
		TotalPrice:      original - discount,
		DiscountApplied: discount,
		DiscountType:    strings.Join(tags, ","),
	}
}
