package payment

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/lock"
	"github.com/arvhein/backend-merch/internal/obs"
	"github.com/arvhein/backend-merch/internal/store"
)

const matcherLockKey = "payment:matcher"

var orderCodePattern = regexp.MustCompile(`(?i)\bMRC-([A-Z2-9]{6})\b`)

// Matcher reconciles parsed payment notifications against orders awaiting
// payment. A notification matches when its text quotes the order code, or
// when its amount equals the total of exactly one open order. Everything
// else stays unmatched for manual review.
type Matcher struct {
	Pool   *pgxpool.Pool
	Inbox  store.Inbox
	Orders store.Orders
	Events *events.Bus
	Lock   lock.Locker
	Log    zerolog.Logger
	Now    func() time.Time
}

func (m *Matcher) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Run reconciles up to limit unmatched notifications. Concurrent runs are
// serialized through a redis lock so two workers never double-pay an order.
func (m *Matcher) Run(ctx context.Context, limit int32) error {
	if m == nil || m.Pool == nil {
		return errors.New("payment matcher not configured")
	}
	err := m.Lock.WithLock(ctx, matcherLockKey, time.Minute, func(ctx context.Context) error {
		return m.run(ctx, limit)
	})
	if obs.MatcherRunsTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.MatcherRunsTotal.WithLabelValues(result).Inc()
	}
	return err
}

func (m *Matcher) run(ctx context.Context, limit int32) error {
	notifications, err := m.Inbox.ListUnmatched(ctx, limit)
	if err != nil {
		return err
	}
	open, err := m.Orders.ListByStatus(ctx, store.OrderPendingPayment, 500)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		order, ok := m.pick(n, open)
		if !ok {
			continue
		}
		if err := m.settle(ctx, n, order); err != nil {
			m.Log.Error().Err(err).Str("order_code", order.Code).Msg("settle matched payment")
			continue
		}
		m.Log.Info().
			Str("provider", n.Provider).
			Str("order_code", order.Code).
			Str("amount", n.Amount.String()).
			Msg("payment matched")
		open = withoutOrder(open, order.ID)
	}
	return nil
}

// MatchOne runs the matcher for a single just-ingested notification.
func (m *Matcher) MatchOne(ctx context.Context, n store.PaymentNotification) error {
	if m == nil || m.Pool == nil {
		return errors.New("payment matcher not configured")
	}
	return m.Lock.WithLock(ctx, matcherLockKey, time.Minute, func(ctx context.Context) error {
		open, err := m.Orders.ListByStatus(ctx, store.OrderPendingPayment, 500)
		if err != nil {
			return err
		}
		order, ok := m.pick(n, open)
		if !ok {
			if m.Events != nil {
				_, _ = m.Events.Emit(ctx, events.KindPaymentUnmatched, n.ID, map[string]any{
					"provider": n.Provider,
					"amount":   n.Amount,
				})
			}
			return nil
		}
		return m.settle(ctx, n, order)
	})
}

// pick selects the order a notification pays, preferring an order code
// quoted in the mail over an amount-only match. Amount matches are only
// trusted when unambiguous.
func (m *Matcher) pick(n store.PaymentNotification, open []store.Order) (store.Order, bool) {
	if code := orderCodePattern.FindString(n.Subject); code != "" {
		for _, o := range open {
			if strings.EqualFold(o.Code, code) && o.Total.Equal(n.Amount) {
				return o, true
			}
		}
	}
	var candidate store.Order
	var hits int
	for _, o := range open {
		if o.Total.Equal(n.Amount) {
			candidate = o
			hits++
		}
	}
	if hits == 1 {
		return candidate, true
	}
	return store.Order{}, false
}

func (m *Matcher) settle(ctx context.Context, n store.PaymentNotification, order store.Order) error {
	err := store.InTx(ctx, m.Pool, func(tx pgx.Tx) error {
		if err := m.Orders.WithTx(tx).MarkPaid(ctx, order.ID, m.now()); err != nil {
			return err
		}
		return m.Inbox.WithTx(tx).MarkMatched(ctx, n.ID, order.ID)
	})
	if err != nil {
		return err
	}
	if obs.MatcherSettleLatency != nil {
		obs.MatcherSettleLatency.Observe(m.now().Sub(n.ReceivedAt).Seconds())
	}
	if m.Events != nil {
		_, _ = m.Events.Emit(ctx, events.KindOrderPaid, order.ID, map[string]any{
			"code":     order.Code,
			"email":    order.Email,
			"provider": n.Provider,
			"payer":    n.Payer,
			"amount":   n.Amount,
		})
	}
	return nil
}

func withoutOrder(orders []store.Order, id uuid.UUID) []store.Order {
	out := orders[:0]
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}
