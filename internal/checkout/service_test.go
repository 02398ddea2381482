package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/cart"
	"github.com/arvhein/backend-merch/internal/promo"
)

func TestOrderCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := newOrderCode()
		require.Len(t, code, 10)
		require.True(t, strings.HasPrefix(code, "MRC-"))
		for _, c := range code[4:] {
			assert.Contains(t, codeAlphabet, string(c), "code %s uses a char outside the alphabet", code)
		}
		seen[code] = true
	}
	// 32^6 combinations, 200 draws colliding would mean a broken generator
	assert.Len(t, seen, 200)
}

func TestCheckoutValidatesInput(t *testing.T) {
	svc := &Service{Pool: nil}
	_, err := svc.Checkout(context.Background(), Input{})
	require.Error(t, err)

	svc = &Service{}
	svc.Cart = &cart.Service{}
	svc.Promo = &promo.Service{}
	_, err = svc.Checkout(context.Background(), Input{CartID: uuid.New(), Email: "a@b.c"})
	require.Error(t, err, "nil pool must refuse, not panic")
}
