package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/store"
)

type stubCartStore struct {
	cart  store.Cart
	items []store.CartItem
	added []uuid.UUID
}

func (s *stubCartStore) Create(ctx context.Context, customerID string) (store.Cart, error) {
	s.cart = store.Cart{ID: uuid.New(), CustomerID: customerID}
	return s.cart, nil
}

func (s *stubCartStore) Get(ctx context.Context, id uuid.UUID) (store.Cart, error) {
	if id != s.cart.ID {
		return store.Cart{}, store.ErrNotFound
	}
	return s.cart, nil
}

func (s *stubCartStore) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	s.added = append(s.added, productID)
	return nil
}

func (s *stubCartStore) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartStore) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

func (s *stubCartStore) Clear(ctx context.Context, cartID uuid.UUID) error {
	s.items = nil
	return nil
}

func (s *stubCartStore) Items(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	return s.items, nil
}

type stubProductLookup struct {
	product store.Product
	err     error
}

func (s *stubProductLookup) GetByID(ctx context.Context, id uuid.UUID) (store.Product, error) {
	if s.err != nil {
		return store.Product{}, s.err
	}
	return s.product, nil
}

func TestSnapshotBuildsAggregates(t *testing.T) {
	cartStore := &stubCartStore{}
	_, err := (&Service{Store: cartStore}).Create(context.Background(), "customer-1")
	require.NoError(t, err)

	cartStore.items = []store.CartItem{
		{ProductID: uuid.New(), ProductName: "tee", Category: "tshirt", Quantity: 2, UnitPrice: decimal.RequireFromString("25")},
		{ProductID: uuid.New(), ProductName: "hoodie", Category: "hoodie", Quantity: 1, UnitPrice: decimal.RequireFromString("60")},
	}
	svc := &Service{Store: cartStore, ShippingCost: decimal.RequireFromString("4.90")}

	snapshot, err := svc.Snapshot(context.Background(), cartStore.cart.ID)
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.TotalItems)
	require.True(t, snapshot.Subtotal.Equal(decimal.RequireFromString("110")))
	require.True(t, snapshot.ShippingCost.Equal(decimal.RequireFromString("4.90")))
	require.Len(t, snapshot.Lines, 2)
}

func TestSnapshotEmptyCart(t *testing.T) {
	cartStore := &stubCartStore{}
	svc := &Service{Store: cartStore}
	_, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	_, err = svc.Snapshot(context.Background(), cartStore.cart.ID)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestSnapshotUnknownCart(t *testing.T) {
	svc := &Service{Store: &stubCartStore{}}
	_, err := svc.Snapshot(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	cartStore := &stubCartStore{}
	svc := &Service{
		Store:    cartStore,
		Products: &stubProductLookup{product: store.Product{IsActive: false}},
	}
	_, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	err = svc.AddItem(context.Background(), cartStore.cart.ID, uuid.New(), 1)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, cartStore.added)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := &Service{Store: &stubCartStore{}}
	err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 0)
	require.Error(t, err)
}
