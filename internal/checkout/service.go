package checkout

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arvhein/backend-merch/internal/cart"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/obs"
	"github.com/arvhein/backend-merch/internal/promo"
	"github.com/arvhein/backend-merch/internal/store"
)

// ErrInvalidInput is returned when the checkout request is incomplete.
var ErrInvalidInput = errors.New("checkout: invalid input")

// ErrOutOfStock is returned when a cart line exceeds the remaining stock.
var ErrOutOfStock = errors.New("checkout: insufficient stock")

// Input describes one checkout request.
type Input struct {
	CartID     uuid.UUID
	CustomerID string
	Email      string
}

// Service freezes a priced cart into an order. Promotion usage increments
// commit in the same transaction as the order, so a concurrent redemption
// race cannot oversell a limited promotion.
type Service struct {
	Pool   *pgxpool.Pool
	Cart   *cart.Service
	Promo  *promo.Service
	Events *events.Bus
	Now    func() time.Time
}

// Checkout prices the cart, persists the order with its frozen lines and
// gift items, records promotion usage, and clears the cart.
func (s *Service) Checkout(ctx context.Context, in Input) (store.Order, error) {
	if s == nil || s.Pool == nil || s.Cart == nil || s.Promo == nil {
		return store.Order{}, errors.New("checkout service not configured")
	}
	if in.CartID == uuid.Nil || strings.TrimSpace(in.Email) == "" {
		return store.Order{}, ErrInvalidInput
	}

	snapshot, err := s.Cart.Snapshot(ctx, in.CartID)
	if err != nil {
		return store.Order{}, err
	}
	pricing, err := s.Promo.Price(ctx, snapshot, in.CustomerID)
	if err != nil {
		return store.Order{}, err
	}
	applied, err := json.Marshal(pricing.Applied)
	if err != nil {
		return store.Order{}, fmt.Errorf("encode applied promotions: %w", err)
	}

	order := store.Order{
		Code:              newOrderCode(),
		CustomerID:        in.CustomerID,
		Email:             strings.TrimSpace(in.Email),
		Status:            store.OrderPendingPayment,
		Subtotal:          snapshot.Subtotal,
		Discount:          pricing.TotalDiscount,
		ShippingCost:      snapshot.ShippingCost,
		Total:             pricing.FinalTotal.Add(snapshot.ShippingCost),
		AppliedPromotions: applied,
	}

	items := make([]store.OrderItem, 0, len(snapshot.Lines)+len(pricing.Gifts))
	for _, line := range snapshot.Lines {
		items = append(items, store.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	for _, gift := range pricing.Gifts {
		items = append(items, store.OrderItem{
			ProductID:   gift.ProductID,
			ProductName: gift.Name,
			Quantity:    1,
			IsGift:      true,
		})
	}

	err = store.InTx(ctx, s.Pool, func(tx pgx.Tx) error {
		products := store.Products{DB: tx}
		for _, line := range snapshot.Lines {
			if err := products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%s: %w", line.ProductName, ErrOutOfStock)
				}
				return err
			}
		}
		created, err := (store.Orders{DB: tx}).Create(ctx, order, items)
		if err != nil {
			return err
		}
		order = created
		return s.Promo.Redeem(ctx, store.Promotions{DB: tx}, pricing.Applied, in.CustomerID, order.ID)
	})
	if err != nil {
		if obs.OrdersCreatedTotal != nil {
			obs.OrdersCreatedTotal.WithLabelValues("error").Inc()
		}
		return store.Order{}, err
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues("ok").Inc()
	}
	if obs.PromotionsAppliedTotal != nil {
		for _, ap := range pricing.Applied {
			obs.PromotionsAppliedTotal.WithLabelValues(string(ap.Type)).Inc()
		}
	}

	// best effort: the order already exists either way
	_ = s.Cart.Store.Clear(ctx, in.CartID)
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.KindOrderCreated, order.ID, map[string]any{
			"code":  order.Code,
			"email": order.Email,
			"total": order.Total,
		})
	}
	return order, nil
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newOrderCode returns a short human-friendly code customers quote in
// payment references.
func newOrderCode() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return "MRC-" + string(buf)
}
