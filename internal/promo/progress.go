package promo

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ProgressKind tags which dimension a progress entry measures.
type ProgressKind string

// Progress dimensions.
const (
	ProgressQuantity ProgressKind = "quantity"
	ProgressValue    ProgressKind = "value"
	ProgressTier     ProgressKind = "tier"
)

// Progress describes how close a cart is to unlocking or advancing one
// threshold dimension of a promotion.
type Progress struct {
	Kind          ProgressKind    `json:"kind"`
	Percent       float64         `json:"percent"`
	Remaining     decimal.Decimal `json:"remaining"`
	NextThreshold decimal.Decimal `json:"nextThreshold"`
	Message       string          `json:"message"`
}

// Estimate reports progress toward every threshold dimension the promotion
// carries: a minimum quantity, a minimum cart value, and tier advancement for
// TIERED promotions. Each dimension is returned as its own tagged entry so
// callers choose what to display. Eligibility is not a precondition; the
// estimator may be called for promotions the cart does not yet qualify for.
func Estimate(cart Cart, p Promotion) []Progress {
	var out []Progress
	if p.Conditions != nil && p.Conditions.MinQuantity != nil {
		out = append(out, quantityProgress(cart.TotalItems, *p.Conditions.MinQuantity))
	}
	if p.Conditions != nil && p.Conditions.MinCartValue != nil {
		out = append(out, valueProgress(cart.Subtotal, *p.Conditions.MinCartValue))
	}
	if p.Type == TypeTiered && p.Tiers != nil {
		if tier, ok := tierProgress(cart.TotalItems, *p.Tiers); ok {
			out = append(out, tier)
		}
	}
	return out
}

// Best picks the single entry the original single-result contract would have
// reported: tier advancement wins over cart value, which wins over quantity.
func Best(entries []Progress) (Progress, bool) {
	if len(entries) == 0 {
		return Progress{}, false
	}
	return entries[len(entries)-1], true
}

func quantityProgress(current, target int) Progress {
	if target <= 0 || current >= target {
		return Progress{
			Kind:          ProgressQuantity,
			Percent:       100,
			Remaining:     decimal.Zero,
			NextThreshold: decimal.NewFromInt(int64(target)),
			Message:       "promotion unlocked",
		}
	}
	remaining := target - current
	return Progress{
		Kind:          ProgressQuantity,
		Percent:       float64(current) / float64(target) * 100,
		Remaining:     decimal.NewFromInt(int64(remaining)),
		NextThreshold: decimal.NewFromInt(int64(target)),
		Message:       fmt.Sprintf("add %d more item(s) to unlock", remaining),
	}
}

func valueProgress(current, target decimal.Decimal) Progress {
	if target.Sign() <= 0 || current.GreaterThanOrEqual(target) {
		return Progress{
			Kind:          ProgressValue,
			Percent:       100,
			Remaining:     decimal.Zero,
			NextThreshold: target,
			Message:       "promotion unlocked",
		}
	}
	remaining := target.Sub(current)
	pct, _ := current.Div(target).Mul(hundred).Float64()
	return Progress{
		Kind:          ProgressValue,
		Percent:       pct,
		Remaining:     remaining,
		NextThreshold: target,
		Message:       fmt.Sprintf("spend %s more to unlock", remaining.String()),
	}
}

// tierProgress measures advancement between the highest tier threshold
// already met (baseline, zero if none) and the smallest threshold still
// ahead. At or above the top tier the promotion is maxed out.
func tierProgress(totalItems int, tiers DiscountTiers) (Progress, bool) {
	var thresholds []int
	switch tiers.Mode {
	case TierModeCumulative:
		if tiers.PerUnit <= 0 {
			return Progress{}, false
		}
		groups := totalItems / tiers.PerUnit
		baseline := groups * tiers.PerUnit
		next := (groups + 1) * tiers.PerUnit
		return betweenThresholds(totalItems, baseline, next), true
	default:
		for _, t := range tiers.Tiers {
			if t.Threshold > 0 {
				thresholds = append(thresholds, t.Threshold)
			}
		}
	}
	if len(thresholds) == 0 {
		return Progress{}, false
	}
	sort.Ints(thresholds)

	baseline := 0
	for _, t := range thresholds {
		if t <= totalItems {
			baseline = t
		}
	}
	for _, t := range thresholds {
		if t > totalItems {
			return betweenThresholds(totalItems, baseline, t), true
		}
	}
	return Progress{
		Kind:          ProgressTier,
		Percent:       100,
		Remaining:     decimal.Zero,
		NextThreshold: decimal.NewFromInt(int64(baseline)),
		Message:       "top tier reached",
	}, true
}

func betweenThresholds(current, baseline, next int) Progress {
	span := next - baseline
	if span <= 0 {
		span = 1
	}
	return Progress{
		Kind:          ProgressTier,
		Percent:       float64(current-baseline) / float64(span) * 100,
		Remaining:     decimal.NewFromInt(int64(next - current)),
		NextThreshold: decimal.NewFromInt(int64(next)),
		Message:       fmt.Sprintf("add %d more item(s) for the next tier", next-current),
	}
}
