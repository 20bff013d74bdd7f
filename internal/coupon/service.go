package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sofreh/backend-resto/internal/store"
)

// Querier captures the persistence methods required by the coupon service.
type Querier interface {
	GetByCode(ctx context.Context, code string) (store.Coupon, error)
	CountRedemptionsByUser(ctx context.Context, couponID, userID string) (int64, error)
}

// PreviewResult describes the outcome of evaluating a coupon without mutating state.
type PreviewResult struct {
	CouponID       string `json:"-"`
	Code           string `json:"code"`
	Discount       int64  `json:"totalDiscount"`
	EligibleAmount int64  `json:"eligibleAmount"`
}

// Service encapsulates coupon rule evaluation.
type Service struct {
	Q                   Querier
	Now                 func() time.Time
	DefaultPerUserLimit int
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview performs a dry-run evaluation for the given cart context.
func (s *Service) Preview(ctx context.Context, code string, userID string, cartSubtotal int64, items []Item) (PreviewResult, error) {
	if s == nil || s.Q == nil {
		return PreviewResult{}, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return PreviewResult{}, fmt.Errorf("code is required: %w", ErrNotEligible)
	}
	model, err := s.Q.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PreviewResult{}, ErrNotEligible
		}
		return PreviewResult{}, err
	}
	rule := RuleFromModel(model)
	rule.DefaultLimit = s.DefaultPerUserLimit

	limit := effectivePerUserLimit(rule)
	if userID != "" && limit > 0 {
		used, err := s.Q.CountRedemptionsByUser(ctx, model.ID, userID)
		if err != nil {
			return PreviewResult{}, err
		}
		rule.PerUserUsed = int32(used)
		rule.EffectiveLimit = limit
	} else if limit > 0 {
		rule.EffectiveLimit = limit
	}

	if err := rule.Validate(s.now(), cartSubtotal); err != nil {
		return PreviewResult{}, err
	}
	eligible := EligibleSubtotal(items, rule)
	if eligible <= 0 {
		return PreviewResult{}, ErrNotEligible
	}
	discount := Compute(eligible, rule)
	if discount <= 0 {
		return PreviewResult{}, ErrNotEligible
	}
	return PreviewResult{CouponID: model.ID, Code: model.Code, Discount: discount, EligibleAmount: eligible}, nil
}

// RuleFromModel converts the stored coupon into a Rule used for evaluation.
func RuleFromModel(c store.Coupon) Rule {
	return Rule{
		Code:         c.Code,
		Kind:         c.Kind,
		Value:        c.Value,
		PercentBps:   c.PercentBps,
		MinSpend:     c.MinSpend,
		UsageLimit:   c.UsageLimit,
		UsedCount:    c.UsedCount,
		PerUserLimit: c.PerUserLimit,
		ValidFrom:    c.ValidFrom,
		ValidTo:      c.ValidTo,
		ItemIDs:      c.ItemIDs,
		CategoryIDs:  c.CategoryIDs,
		Active:       c.Active,
	}
}

func effectivePerUserLimit(rule Rule) int32 {
	if rule.PerUserLimit != nil && *rule.PerUserLimit > 0 {
		return *rule.PerUserLimit
	}
	if rule.DefaultLimit > 0 {
		return int32(rule.DefaultLimit)
	}
	return 0
}
