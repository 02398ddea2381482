package promo

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Price computes the discount a single promotion grants against the cart,
// dispatching on the promotion type. It is total: malformed or missing
// type-specific configuration yields a zero quote rather than an error, so a
// misconfigured promotion can never block pricing.
func Price(p Promotion, cart Cart) Quote {
	switch p.Type {
	case TypePercentage:
		return pricePercentage(p, cart)
	case TypeFixed:
		return priceFixed(p, cart)
	case TypePriceFixed:
		return pricePriceFixed(p, cart)
	case TypeFreeShipping:
		return Quote{
			Discount: cart.ShippingCost,
			Details:  FreeShippingDetail{ShippingCost: cart.ShippingCost},
		}
	case TypeFreeGift:
		return priceFreeGift(p)
	case TypeTiered:
		return priceTiered(p, cart)
	case TypeBogo:
		return priceBogo(p, cart)
	}
	return Quote{Discount: decimal.Zero}
}

func pricePercentage(p Promotion, cart Cart) Quote {
	if p.DiscountValue.Sign() <= 0 {
		return Quote{Discount: decimal.Zero}
	}
	discount := cart.Subtotal.Mul(p.DiscountValue).Div(hundred)
	return Quote{Discount: discount, Details: PercentageDetail{Percent: p.DiscountValue}}
}

func priceFixed(p Promotion, cart Cart) Quote {
	if p.DiscountValue.Sign() <= 0 {
		return Quote{Discount: decimal.Zero}
	}
	discount := p.DiscountValue
	if discount.GreaterThan(cart.Subtotal) {
		discount = cart.Subtotal
	}
	return Quote{Discount: discount, Details: FixedDetail{Amount: p.DiscountValue}}
}

func pricePriceFixed(p Promotion, cart Cart) Quote {
	discount := cart.Subtotal.Sub(p.DiscountValue)
	if discount.Sign() < 0 {
		discount = decimal.Zero
	}
	return Quote{Discount: discount, Details: PriceFixedDetail{TargetPrice: p.DiscountValue}}
}

func priceFreeGift(p Promotion) Quote {
	if p.Gift == nil {
		return Quote{Discount: decimal.Zero}
	}
	gift := *p.Gift
	return Quote{Discount: decimal.Zero, Details: FreeGiftDetail{Gift: gift}, Gift: &gift}
}

func priceTiered(p Promotion, cart Cart) Quote {
	if p.Tiers == nil {
		return Quote{Discount: decimal.Zero}
	}
	switch p.Tiers.Mode {
	case TierModeCumulative:
		return priceCumulativeTiers(*p.Tiers, cart)
	default:
		return priceProgressiveTiers(p.Tiers.Tiers, cart)
	}
}

func priceCumulativeTiers(t DiscountTiers, cart Cart) Quote {
	if t.PerUnit <= 0 || t.Discount.Sign() <= 0 {
		return Quote{Discount: decimal.Zero}
	}
	groups := cart.TotalItems / t.PerUnit
	if groups <= 0 {
		return Quote{Discount: decimal.Zero}
	}
	earned := t.Discount.Mul(decimal.NewFromInt(int64(groups)))
	if t.Kind == TierPercentage {
		pct := earned
		cap := hundred
		if t.MaxDiscount != nil {
			cap = *t.MaxDiscount
		}
		if pct.GreaterThan(cap) {
			pct = cap
		}
		discount := cart.Subtotal.Mul(pct).Div(hundred)
		return Quote{Discount: discount, Details: TieredDetail{Mode: TierModeCumulative, Groups: groups, Percent: pct}}
	}
	if t.MaxDiscount != nil && earned.GreaterThan(*t.MaxDiscount) {
		earned = *t.MaxDiscount
	}
	return Quote{Discount: earned, Details: TieredDetail{Mode: TierModeCumulative, Groups: groups, Amount: earned}}
}

func priceProgressiveTiers(tiers []Tier, cart Cart) Quote {
	if len(tiers) == 0 {
		return Quote{Discount: decimal.Zero}
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })

	for _, tier := range sorted {
		if cart.TotalItems < tier.Threshold {
			continue
		}
		if tier.Kind == TierPercentage {
			discount := cart.Subtotal.Mul(tier.Discount).Div(hundred)
			return Quote{Discount: discount, Details: TieredDetail{Mode: TierModeProgressive, Threshold: tier.Threshold, Percent: tier.Discount}}
		}
		return Quote{Discount: tier.Discount, Details: TieredDetail{Mode: TierModeProgressive, Threshold: tier.Threshold, Amount: tier.Discount}}
	}
	return Quote{Discount: decimal.Zero}
}

// cartUnit is one quantity unit of a cart line, materialized so BOGO group
// indexing operates on discrete units rather than line records.
type cartUnit struct {
	name  string
	price decimal.Decimal
}

func priceBogo(p Promotion, cart Cart) Quote {
	if p.Bogo == nil {
		return Quote{Discount: decimal.Zero}
	}
	cfg := *p.Bogo
	totalUnits := cfg.Buy + cfg.Get
	if cfg.Buy <= 0 || cfg.Get <= 0 || totalUnits <= 0 {
		return Quote{Discount: decimal.Zero}
	}
	groups := cart.TotalItems / totalUnits
	if groups <= 0 {
		return Quote{Discount: decimal.Zero}
	}

	units := make([]cartUnit, 0, cart.TotalItems)
	for _, line := range cart.Lines {
		for i := 0; i < line.Quantity; i++ {
			units = append(units, cartUnit{name: line.ProductName, price: line.UnitPrice})
		}
	}
	sort.SliceStable(units, func(i, j int) bool {
		if cfg.ApplyOnCheapest {
			return units[i].price.LessThan(units[j].price)
		}
		return units[i].price.GreaterThan(units[j].price)
	})

	total := decimal.Zero
	items := make([]DiscountedItem, 0, groups)
	for i := 0; i < groups; i++ {
		idx := i*totalUnits + cfg.Buy
		if idx >= len(units) {
			// partial group at the tail
			continue
		}
		unit := units[idx]
		itemDiscount := unit.price.Mul(cfg.DiscountOnGet).Div(hundred)
		total = total.Add(itemDiscount)
		items = append(items, DiscountedItem{
			ProductName:   unit.name,
			OriginalPrice: unit.price,
			Discount:      itemDiscount,
		})
	}
	return Quote{Discount: total, Details: BogoDetail{Groups: groups, DiscountedItems: items}}
}
