package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvhein/backend-merch/internal/promo"
	"github.com/arvhein/backend-merch/internal/store"
)

// ErrEmptyCart is returned when pricing or checkout hits a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// Store captures the cart persistence methods the service needs.
type Store interface {
	Create(ctx context.Context, customerID string) (store.Cart, error)
	Get(ctx context.Context, id uuid.UUID) (store.Cart, error)
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
	Items(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
}

// Products captures the product lookups needed to validate cart writes.
type Products interface {
	GetByID(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service assembles pricing snapshots from stored carts. ShippingCost is the
// flat rate attached to every snapshot; free-shipping promotions waive it.
type Service struct {
	Store        Store
	Products     Products
	ShippingCost decimal.Decimal
}

// Create opens an empty cart.
func (s *Service) Create(ctx context.Context, customerID string) (store.Cart, error) {
	if s == nil || s.Store == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	return s.Store.Create(ctx, customerID)
}

// AddItem validates the product and adds it to the cart.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if s.Products != nil {
		p, err := s.Products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return store.ErrNotFound
		}
	}
	return s.Store.UpsertItem(ctx, cartID, productID, quantity)
}

// Snapshot loads a cart and freezes it into the immutable pricing input.
func (s *Service) Snapshot(ctx context.Context, cartID uuid.UUID) (promo.Cart, error) {
	if s == nil || s.Store == nil {
		return promo.Cart{}, errors.New("cart service not configured")
	}
	if _, err := s.Store.Get(ctx, cartID); err != nil {
		return promo.Cart{}, err
	}
	items, err := s.Store.Items(ctx, cartID)
	if err != nil {
		return promo.Cart{}, err
	}
	if len(items) == 0 {
		return promo.Cart{}, ErrEmptyCart
	}
	lines := make([]promo.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, promo.CartLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Category:    item.Category,
			Color:       item.Color,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return promo.BuildCart(lines, s.ShippingCost), nil
}
