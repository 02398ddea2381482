package promo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type identifies the payoff computation of a promotion.
type Type string

// Supported promotion types.
const (
	TypePercentage   Type = "PERCENTAGE"
	TypeFixed        Type = "FIXED"
	TypePriceFixed   Type = "PRICE_FIXED"
	TypeTiered       Type = "TIERED"
	TypeBogo         Type = "BOGO"
	TypeFreeShipping Type = "FREE_SHIPPING"
	TypeFreeGift     Type = "FREE_GIFT"
)

// Valid reports whether t is one of the known promotion types.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixed, TypePriceFixed, TypeTiered, TypeBogo, TypeFreeShipping, TypeFreeGift:
		return true
	}
	return false
}

// TierMode selects between the two tiered discount sub-modes.
type TierMode string

// Tier modes.
const (
	TierModeCumulative  TierMode = "cumulative"
	TierModeProgressive TierMode = "progressive"
)

// TierKind distinguishes percentage tiers from fixed-amount tiers.
type TierKind string

// Tier kinds.
const (
	TierPercentage TierKind = "PERCENTAGE"
	TierFixed      TierKind = "FIXED"
)

// CartLine is a single cart entry with its product metadata already resolved.
// The engine never looks product records up itself.
type CartLine struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Category    string          `json:"category"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Cart is an immutable snapshot of the cart being priced.
type Cart struct {
	Lines        []CartLine      `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TotalItems   int             `json:"totalItems"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
}

// BuildCart assembles a snapshot from resolved lines, computing the
// aggregate subtotal and item count.
func BuildCart(lines []CartLine, shippingCost decimal.Decimal) Cart {
	cart := Cart{Lines: lines, Subtotal: decimal.Zero, ShippingCost: shippingCost}
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		cart.Subtotal = cart.Subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		cart.TotalItems += line.Quantity
	}
	return cart
}

// ConditionAttributes carries the structural constraints of a condition set.
type ConditionAttributes struct {
	MustContainAll bool `json:"mustContainAll,omitempty"`
	SameSize       bool `json:"sameSize,omitempty"`
	SameColor      bool `json:"sameColor,omitempty"`
	SameProduct    bool `json:"sameProduct,omitempty"`
}

// Conditions is a sparse predicate over a cart. Absent fields impose no
// constraint; all present fields must hold.
type Conditions struct {
	MinQuantity  *int                `json:"minQuantity,omitempty"`
	MaxQuantity  *int                `json:"maxQuantity,omitempty"`
	MinCartValue *decimal.Decimal    `json:"minCartValue,omitempty"`
	MaxCartValue *decimal.Decimal    `json:"maxCartValue,omitempty"`
	Categories   []string            `json:"categories,omitempty"`
	Products     []uuid.UUID         `json:"products,omitempty"`
	Attributes   ConditionAttributes `json:"attributes,omitempty"`
}

// Tier is one threshold entry of a progressive tier list.
type Tier struct {
	Threshold int             `json:"threshold"`
	Discount  decimal.Decimal `json:"discount"`
	Kind      TierKind        `json:"kind"`
}

// DiscountTiers configures a TIERED promotion. Cumulative mode repeats a
// bonus per completed group of PerUnit items; progressive mode rewards the
// highest threshold met from the Tiers list.
type DiscountTiers struct {
	Mode        TierMode         `json:"mode"`
	PerUnit     int              `json:"perUnit,omitempty"`
	Discount    decimal.Decimal  `json:"discount,omitempty"`
	Kind        TierKind         `json:"kind,omitempty"`
	MaxDiscount *decimal.Decimal `json:"maxDiscount,omitempty"`
	Tiers       []Tier           `json:"tiers,omitempty"`
}

// BogoConfig configures a buy-X-get-Y promotion. DiscountOnGet is a
// percentage applied to the discounted unit of each completed group.
type BogoConfig struct {
	Buy             int             `json:"buy"`
	Get             int             `json:"get"`
	DiscountOnGet   decimal.Decimal `json:"discountOnGet"`
	ApplyOnCheapest bool            `json:"applyOnCheapest"`
}

// GiftProduct references the add-on item granted by a FREE_GIFT promotion.
type GiftProduct struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
}

// Promotion is a prioritized discount rule. The engine treats it as
// read-only; UsageCount is authoritative external state maintained by the
// caller at redemption time.
type Promotion struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Type           Type           `json:"type"`
	IsActive       bool           `json:"isActive"`
	Priority       int            `json:"priority"`
	Conditions     *Conditions    `json:"conditions,omitempty"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	Tiers          *DiscountTiers `json:"discountTiers,omitempty"`
	Bogo           *BogoConfig    `json:"bogoConfig,omitempty"`
	Gift           *GiftProduct   `json:"giftProduct,omitempty"`
	StartsAt       *time.Time     `json:"startsAt,omitempty"`
	EndsAt         *time.Time     `json:"endsAt,omitempty"`
	MaxUsesTotal   *int           `json:"maxUsesTotal,omitempty"`
	MaxUsesPerUser *int           `json:"maxUsesPerUser,omitempty"`
	UsageCount     int            `json:"usageCount"`
	CombinesWith   []uuid.UUID    `json:"combinesWith,omitempty"`
}

// ActiveAt reports whether the promotion is enabled and inside its activity
// window at the given instant. Nil bounds are unbounded.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// DiscountedItem records one unit discounted by a BOGO group.
type DiscountedItem struct {
	ProductName   string          `json:"productName"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Discount      decimal.Decimal `json:"discount"`
}

// PercentageDetail describes a percentage-of-subtotal discount.
type PercentageDetail struct {
	Percent decimal.Decimal `json:"percent"`
}

// FixedDetail describes a flat-amount discount, clamped at the subtotal.
type FixedDetail struct {
	Amount decimal.Decimal `json:"amount"`
}

// PriceFixedDetail describes a pay-exactly-this-much discount.
type PriceFixedDetail struct {
	TargetPrice decimal.Decimal `json:"targetPrice"`
}

// FreeShippingDetail carries the waived shipping amount.
type FreeShippingDetail struct {
	ShippingCost decimal.Decimal `json:"shippingCost"`
}

// FreeGiftDetail names the granted gift.
type FreeGiftDetail struct {
	Gift GiftProduct `json:"gift"`
}

// TieredDetail describes which tier or how many groups produced the discount.
type TieredDetail struct {
	Mode      TierMode        `json:"mode"`
	Groups    int             `json:"groups,omitempty"`
	Threshold int             `json:"threshold,omitempty"`
	Percent   decimal.Decimal `json:"percent,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
}

// BogoDetail lists the discounted units of each completed group.
type BogoDetail struct {
	Groups          int              `json:"groups"`
	DiscountedItems []DiscountedItem `json:"discountedItems"`
}

// Quote is the outcome of pricing one promotion against a cart.
type Quote struct {
	Discount decimal.Decimal `json:"discount"`
	Details  any             `json:"details,omitempty"`
	Gift     *GiftProduct    `json:"gift,omitempty"`
}

// AppliedPromotion summarizes one accepted promotion inside a pricing result.
type AppliedPromotion struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Type     Type            `json:"type"`
	Discount decimal.Decimal `json:"discount"`
	Details  any             `json:"details,omitempty"`
}

// PricingResult aggregates the accepted promotions for a cart.
type PricingResult struct {
	TotalDiscount decimal.Decimal    `json:"totalDiscount"`
	Applied       []AppliedPromotion `json:"appliedPromotions"`
	Gifts         []GiftProduct      `json:"giftProducts"`
	FinalTotal    decimal.Decimal    `json:"finalTotal"`
}

// UsageLookup resolves how many times the given customer has already
// redeemed the promotion. Implementations must be side-effect free; the
// selector may call it once per candidate promotion.
type UsageLookup func(promotionID uuid.UUID, customerID string) int
