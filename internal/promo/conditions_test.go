package promo_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/promo"
)

func intPtr(v int) *int { return &v }

func TestMatchesNilConditionsUniversallyEligible(t *testing.T) {
	var c *promo.Conditions
	require.True(t, c.Matches(cartOf(line("tee", 1, "10.00"))))
	require.True(t, (&promo.Conditions{}).Matches(cartOf()))
}

func TestMatchesQuantityBounds(t *testing.T) {
	cart := cartOf(line("tee", 2, "10.00"))

	require.False(t, (&promo.Conditions{MinQuantity: intPtr(3)}).Matches(cart))
	require.True(t, (&promo.Conditions{MinQuantity: intPtr(2)}).Matches(cart), "bounds are inclusive")
	require.True(t, (&promo.Conditions{MaxQuantity: intPtr(2)}).Matches(cart))
	require.False(t, (&promo.Conditions{MaxQuantity: intPtr(1)}).Matches(cart))
}

func TestMatchesCartValueBounds(t *testing.T) {
	cart := cartOf(line("tee", 2, "10.00"))

	minVal := dec("20.00")
	require.True(t, (&promo.Conditions{MinCartValue: &minVal}).Matches(cart))
	maxVal := dec("19.99")
	require.False(t, (&promo.Conditions{MaxCartValue: &maxVal}).Matches(cart))
}

func TestMatchesCategoriesAnyOf(t *testing.T) {
	tee := line("tee", 1, "10.00")
	tee.Category = "apparel"
	poster := line("poster", 1, "8.00")
	poster.Category = "prints"
	cart := cartOf(tee, poster)

	require.True(t, (&promo.Conditions{Categories: []string{"prints", "stickers"}}).Matches(cart))
	require.False(t, (&promo.Conditions{Categories: []string{"stickers"}}).Matches(cart))
}

func TestMatchesProductsAnyVersusAll(t *testing.T) {
	tee := line("tee", 1, "10.00")
	poster := line("poster", 1, "8.00")
	cart := cartOf(tee, poster)
	other := uuid.New()

	anyOf := &promo.Conditions{Products: []uuid.UUID{tee.ProductID, other}}
	require.True(t, anyOf.Matches(cart))

	allOf := &promo.Conditions{
		Products:   []uuid.UUID{tee.ProductID, other},
		Attributes: promo.ConditionAttributes{MustContainAll: true},
	}
	require.False(t, allOf.Matches(cart))

	allOf.Products = []uuid.UUID{tee.ProductID, poster.ProductID}
	require.True(t, allOf.Matches(cart))
}

func TestMatchesUniformAttributes(t *testing.T) {
	a := line("tee", 1, "10.00")
	a.Size, a.Color = "M", "black"
	b := line("tee", 1, "10.00")
	b.Size, b.Color = "M", "white"
	cart := cartOf(a, b)

	require.True(t, (&promo.Conditions{Attributes: promo.ConditionAttributes{SameSize: true}}).Matches(cart))
	require.False(t, (&promo.Conditions{Attributes: promo.ConditionAttributes{SameColor: true}}).Matches(cart))
	require.False(t, (&promo.Conditions{Attributes: promo.ConditionAttributes{SameProduct: true}}).Matches(cart))

	solo := cartOf(a)
	require.True(t, (&promo.Conditions{Attributes: promo.ConditionAttributes{SameProduct: true}}).Matches(solo))
}

func TestMatchesAllPresentFieldsMustHold(t *testing.T) {
	tee := line("tee", 3, "10.00")
	tee.Category = "apparel"
	cart := cartOf(tee)

	c := &promo.Conditions{
		MinQuantity: intPtr(2),
		Categories:  []string{"apparel"},
	}
	require.True(t, c.Matches(cart))

	c.Categories = []string{"prints"}
	require.False(t, c.Matches(cart), "one failing constraint rejects the whole set")
}
