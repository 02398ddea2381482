package promo_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/promo"
)

func percentPromotion(name string, percent string, combinesWith ...uuid.UUID) promo.Promotion {
	return promo.Promotion{
		ID:            uuid.New(),
		Name:          name,
		Type:          promo.TypePercentage,
		IsActive:      true,
		DiscountValue: dec(percent),
		CombinesWith:  combinesWith,
	}
}

func TestSelectAndPriceSinglePromotion(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	p := percentPromotion("launch sale", "20")

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{p}, nil)

	require.True(t, result.TotalDiscount.Equal(dec("20")), "got %s", result.TotalDiscount)
	require.True(t, result.FinalTotal.Equal(dec("80")))
	require.Len(t, result.Applied, 1)
	require.Equal(t, p.ID, result.Applied[0].ID)
	require.Equal(t, promo.TypePercentage, result.Applied[0].Type)
}

func TestSelectAndPriceExclusiveStopsSelection(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	exclusive := percentPromotion("exclusive", "10") // empty CombinesWith
	later := percentPromotion("later", "5", uuid.New())

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{exclusive, later}, nil)

	require.Len(t, result.Applied, 1)
	require.Equal(t, exclusive.ID, result.Applied[0].ID)
	require.True(t, result.TotalDiscount.Equal(dec("10")))
}

func TestSelectAndPriceCombinableKeepsGoing(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	first := percentPromotion("first", "10", uuid.New())
	second := percentPromotion("second", "5", uuid.New())

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{first, second}, nil)

	require.Len(t, result.Applied, 2)
	require.True(t, result.TotalDiscount.Equal(dec("15")))
}

func TestSelectAndPriceDeduplicatesByID(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	p := percentPromotion("dup", "10", uuid.New())

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{p, p}, nil)

	require.Len(t, result.Applied, 1)
	require.True(t, result.TotalDiscount.Equal(dec("10")))
}

func TestSelectAndPriceGlobalUsageLimit(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	p := percentPromotion("exhausted", "10")
	limit := 5
	p.MaxUsesTotal = &limit
	p.UsageCount = 5

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{p}, nil)

	require.Empty(t, result.Applied)
	require.True(t, result.TotalDiscount.IsZero())
	require.True(t, result.FinalTotal.Equal(cart.Subtotal))
}

func TestSelectAndPricePerUserLimit(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	p := percentPromotion("once each", "10")
	limit := 1
	p.MaxUsesPerUser = &limit

	used := func(uuid.UUID, string) int { return 1 }

	result := promo.SelectAndPrice(cart, "customer-1", []promo.Promotion{p}, used)
	require.Empty(t, result.Applied, "customer already at the per-user limit")

	// anonymous carts cannot be limited per user
	result = promo.SelectAndPrice(cart, "", []promo.Promotion{p}, used)
	require.Len(t, result.Applied, 1)
}

func TestSelectAndPriceIneligibleConditionsSkipped(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	p := percentPromotion("bulk only", "10")
	p.Conditions = &promo.Conditions{MinQuantity: intPtr(3)}

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{p}, nil)
	require.Empty(t, result.Applied)
}

func TestSelectAndPriceZeroDiscountWithGiftStillApplies(t *testing.T) {
	cart := cartOf(line("tee", 2, "50.00"))
	gift := promo.Promotion{
		ID:       uuid.New(),
		Name:     "free pin",
		Type:     promo.TypeFreeGift,
		IsActive: true,
		Gift:     &promo.GiftProduct{ProductID: uuid.New(), Name: "enamel pin"},
	}

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{gift}, nil)

	require.Len(t, result.Applied, 1)
	require.Len(t, result.Gifts, 1)
	require.True(t, result.TotalDiscount.IsZero())
}

func TestSelectAndPriceClampsAtSubtotal(t *testing.T) {
	cart := cartOf(line("sticker", 1, "10.00"))
	a := promo.Promotion{ID: uuid.New(), Name: "a", Type: promo.TypeFixed, IsActive: true, DiscountValue: dec("8"), CombinesWith: []uuid.UUID{uuid.New()}}
	b := promo.Promotion{ID: uuid.New(), Name: "b", Type: promo.TypeFixed, IsActive: true, DiscountValue: dec("8"), CombinesWith: []uuid.UUID{uuid.New()}}

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{a, b}, nil)

	require.True(t, result.TotalDiscount.Equal(dec("10.00")), "discount never exceeds subtotal, got %s", result.TotalDiscount)
	require.True(t, result.FinalTotal.IsZero())
}

func TestSelectAndPriceDeterministic(t *testing.T) {
	cart := cartOf(line("tee", 4, "12.00"), line("poster", 1, "8.00"))
	promos := []promo.Promotion{
		percentPromotion("first", "10", uuid.New()),
		{
			ID: uuid.New(), Name: "bogo", Type: promo.TypeBogo, IsActive: true,
			Bogo:         &promo.BogoConfig{Buy: 1, Get: 1, DiscountOnGet: dec("100"), ApplyOnCheapest: true},
			CombinesWith: []uuid.UUID{uuid.New()},
		},
	}

	first := promo.SelectAndPrice(cart, "cust", promos, func(uuid.UUID, string) int { return 0 })
	second := promo.SelectAndPrice(cart, "cust", promos, func(uuid.UUID, string) int { return 0 })

	require.True(t, first.TotalDiscount.Equal(second.TotalDiscount))
	require.Equal(t, len(first.Applied), len(second.Applied))
	for i := range first.Applied {
		require.Equal(t, first.Applied[i].ID, second.Applied[i].ID)
		require.True(t, first.Applied[i].Discount.Equal(second.Applied[i].Discount))
	}
}

func TestSelectAndPriceMalformedPromotionIsIgnored(t *testing.T) {
	cart := cartOf(line("tee", 4, "12.00"))
	broken := promo.Promotion{ID: uuid.New(), Name: "broken tiers", Type: promo.TypeTiered, IsActive: true}
	healthy := percentPromotion("healthy", "10")

	result := promo.SelectAndPrice(cart, "", []promo.Promotion{broken, healthy}, nil)

	require.Len(t, result.Applied, 1)
	require.Equal(t, healthy.ID, result.Applied[0].ID)
}

func TestSelectAndPriceTotalNeverExceedsSubtotalProperty(t *testing.T) {
	carts := []promo.Cart{
		cartOf(),
		cartOf(line("tee", 1, "0.01")),
		cartOf(line("tee", 7, "3.33"), line("poster", 2, "101.00")),
	}
	promos := []promo.Promotion{
		{ID: uuid.New(), Type: promo.TypeFixed, IsActive: true, DiscountValue: dec("500"), CombinesWith: []uuid.UUID{uuid.New()}},
		{ID: uuid.New(), Type: promo.TypePriceFixed, IsActive: true, DiscountValue: dec("1"), CombinesWith: []uuid.UUID{uuid.New()}},
		percentPromotion("pct", "99", uuid.New()),
	}
	for _, cart := range carts {
		result := promo.SelectAndPrice(cart, "", promos, nil)
		require.False(t, result.TotalDiscount.GreaterThan(cart.Subtotal))
		require.False(t, result.FinalTotal.IsNegative())
	}
}

func TestBuildCartAggregates(t *testing.T) {
	cart := promo.BuildCart([]promo.CartLine{
		line("tee", 2, "12.50"),
		line("poster", 1, "8.00"),
		{ProductID: uuid.New(), ProductName: "void", Quantity: 0, UnitPrice: dec("99")},
	}, dec("4.90"))

	require.Equal(t, 3, cart.TotalItems)
	require.True(t, cart.Subtotal.Equal(dec("33.00")))
	require.True(t, cart.ShippingCost.Equal(dec("4.90")))
}

func TestPromotionActiveAt(t *testing.T) {
	p := percentPromotion("windowed", "10")
	now := time.Now()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)
	p.StartsAt, p.EndsAt = &from, &to
	require.True(t, p.ActiveAt(now))
	require.False(t, p.ActiveAt(now.Add(-2*time.Hour)))

	p.IsActive = false
	require.False(t, p.ActiveAt(now))

	unbounded := percentPromotion("always", "10")
	require.True(t, unbounded.ActiveAt(now))
}
