package promo

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SelectAndPrice walks the candidate promotions in caller-provided order
// (active, in-window, priority descending) and returns the accepted subset
// with the aggregate discount.
//
// Usage limits are re-checked here even though callers pre-filter, because
// they are instantaneous stateful checks. The per-user limit is skipped for
// anonymous carts (empty customerID). An accepted promotion with an empty
// CombinesWith list is exclusive: selection stops immediately after it.
// The aggregate discount is clamped at the cart subtotal.
func SelectAndPrice(cart Cart, customerID string, promotions []Promotion, usage UsageLookup) PricingResult {
	result := PricingResult{
		TotalDiscount: decimal.Zero,
		Applied:       []AppliedPromotion{},
		Gifts:         []GiftProduct{},
	}
	processed := make(map[uuid.UUID]bool, len(promotions))

	for _, p := range promotions {
		if processed[p.ID] {
			continue
		}
		if p.MaxUsesTotal != nil && p.UsageCount >= *p.MaxUsesTotal {
			continue
		}
		if p.MaxUsesPerUser != nil && customerID != "" && usage != nil {
			if usage(p.ID, customerID) >= *p.MaxUsesPerUser {
				continue
			}
		}
		if !p.Conditions.Matches(cart) {
			continue
		}

		quote := Price(p, cart)
		if quote.Discount.Sign() <= 0 && quote.Gift == nil {
			continue
		}

		processed[p.ID] = true
		result.TotalDiscount = result.TotalDiscount.Add(quote.Discount)
		result.Applied = append(result.Applied, AppliedPromotion{
			ID:       p.ID,
			Name:     p.Name,
			Type:     p.Type,
			Discount: quote.Discount,
			Details:  quote.Details,
		})
		if quote.Gift != nil {
			result.Gifts = append(result.Gifts, *quote.Gift)
		}

		if len(p.CombinesWith) == 0 {
			break
		}
	}

	if result.TotalDiscount.GreaterThan(cart.Subtotal) {
		result.TotalDiscount = cart.Subtotal
	}
	result.FinalTotal = cart.Subtotal.Sub(result.TotalDiscount)
	return result
}
