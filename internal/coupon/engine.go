package coupon

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotEligible is returned when the coupon cannot be applied to the provided cart.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrUsageLimitReached indicates the coupon has exhausted the global usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached indicates the caller has exceeded the per-user allowance.
	ErrPerUserLimitReached = errors.New("coupon per-user usage limit reached")
	// ErrInactive is returned when attempting to use a coupon outside of its active window.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the coupon has already expired.
	ErrExpired = errors.New("coupon expired")
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the coupon requirement.
	ErrMinimumSpendUnmet = errors.New("coupon minimum spend not met")
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code           string
	Kind           string
	Value          int64
	PercentBps     *int32
	MinSpend       int64
	UsageLimit     *int32
	UsedCount      int32
	PerUserLimit   *int32
	ValidFrom      *time.Time
	ValidTo        *time.Time
	ItemIDs        []string
	CategoryIDs    []string
	Active         bool
	DefaultLimit   int
	PerUserUsed    int32
	EffectiveLimit int32
}

// Item represents one cart line eligible for coupon calculation.
type Item struct {
	ItemID      string
	CategoryIDs []string
	Subtotal    int64
}

// Validate ensures the rule can be applied at the provided instant and cart subtotal.
func (r Rule) Validate(now time.Time, cartSubtotal int64) error {
	if !r.Active {
		return ErrInactive
	}
	if cartSubtotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.EffectiveLimit > 0 && r.PerUserUsed >= r.EffectiveLimit {
		return ErrPerUserLimitReached
	}
	return nil
}

// EligibleSubtotal calculates the portion of the cart affected by the rule's scope.
func EligibleSubtotal(items []Item, r Rule) int64 {
	var total int64
	scoped := len(r.ItemIDs) > 0 || len(r.CategoryIDs) > 0
	for _, it := range items {
		if it.Subtotal <= 0 {
			continue
		}
		if !scoped || ruleMatchesItem(r, it) {
			total += it.Subtotal
		}
	}
	return total
}

func ruleMatchesItem(r Rule, it Item) bool {
	for _, id := range r.ItemIDs {
		if id == it.ItemID {
			return true
		}
	}
	for _, catID := range r.CategoryIDs {
		for _, itemCat := range it.CategoryIDs {
			if catID == itemCat {
				return true
			}
		}
	}
	return false
}

// Compute determines the discount amount based on the rule and eligible subtotal.
func Compute(eligible int64, r Rule) int64 {
	if eligible <= 0 {
		return 0
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, "percent") {
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return 0
		}
		discount = (eligible * int64(*r.PercentBps)) / 10000
	}
	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		return 0
	}
	return discount
}
