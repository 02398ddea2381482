package payment

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/store"
)

func openOrder(code, total string) store.Order {
	return store.Order{
		ID:     uuid.New(),
		Code:   code,
		Status: store.OrderPendingPayment,
		Total:  decimal.RequireFromString(total),
	}
}

func notification(subject, amount string) store.PaymentNotification {
	return store.PaymentNotification{
		ID:      uuid.New(),
		Subject: subject,
		Amount:  decimal.RequireFromString(amount),
	}
}

func TestPickPrefersOrderCode(t *testing.T) {
	m := &Matcher{}
	a := openOrder("MRC-ABC234", "50.00")
	b := openOrder("MRC-XYZ789", "50.00")

	matched, ok := m.pick(notification("payment for MRC-XYZ789", "50.00"), []store.Order{a, b})
	require.True(t, ok)
	require.Equal(t, b.ID, matched.ID)
}

func TestPickOrderCodeRequiresAmountAgreement(t *testing.T) {
	m := &Matcher{}
	a := openOrder("MRC-ABC234", "50.00")

	// quoted code but wrong amount must not settle that order
	_, ok := m.pick(notification("payment for MRC-ABC234", "10.00"), []store.Order{a})
	require.False(t, ok)
}

func TestPickUniqueAmountFallback(t *testing.T) {
	m := &Matcher{}
	a := openOrder("MRC-AAA222", "42.50")
	b := openOrder("MRC-BBB333", "99.00")

	matched, ok := m.pick(notification("you received money", "42.50"), []store.Order{a, b})
	require.True(t, ok)
	require.Equal(t, a.ID, matched.ID)
}

func TestPickAmbiguousAmountStaysUnmatched(t *testing.T) {
	m := &Matcher{}
	a := openOrder("MRC-AAA222", "42.50")
	b := openOrder("MRC-BBB333", "42.50")

	_, ok := m.pick(notification("you received money", "42.50"), []store.Order{a, b})
	require.False(t, ok)
}

func TestPickNoOpenOrders(t *testing.T) {
	m := &Matcher{}
	_, ok := m.pick(notification("anything", "10.00"), nil)
	require.False(t, ok)
}

func TestOrderCodePattern(t *testing.T) {
	require.True(t, strings.EqualFold("MRC-ABC234", orderCodePattern.FindString("please reconcile mrc-abc234 today")))
	require.Empty(t, orderCodePattern.FindString("no code here"))
}
