package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/store"
)

type stubProducts struct {
	products   []store.Product
	categories []string
	listCalls  int
}

func (s *stubProducts) List(ctx context.Context, params store.ListProductsParams) ([]store.Product, error) {
	s.listCalls++
	return s.products, nil
}

func (s *stubProducts) Count(ctx context.Context, category string) (int64, error) {
	return int64(len(s.products)), nil
}

func (s *stubProducts) GetByID(ctx context.Context, id uuid.UUID) (store.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return store.Product{}, store.ErrNotFound
}

func (s *stubProducts) GetBySlug(ctx context.Context, slug string) (store.Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return store.Product{}, store.ErrNotFound
}

func (s *stubProducts) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]store.Product, error) {
	return s.products, nil
}

func (s *stubProducts) Categories(ctx context.Context) ([]string, error) {
	return s.categories, nil
}

func (s *stubProducts) Create(ctx context.Context, p store.Product) (store.Product, error) {
	p.ID = uuid.New()
	s.products = append(s.products, p)
	return p, nil
}

func (s *stubProducts) Update(ctx context.Context, p store.Product) error {
	for i := range s.products {
		if s.products[i].ID == p.ID {
			s.products[i] = p
			return nil
		}
	}
	return store.ErrNotFound
}

func testCacheClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func testProduct(slug string) store.Product {
	return store.Product{
		ID:    uuid.New(),
		Slug:  slug,
		Name:  slug,
		Price: decimal.RequireFromString("19.90"),
	}
}

func TestProductsCachesListing(t *testing.T) {
	stub := &stubProducts{products: []store.Product{testProduct("tee")}}
	svc := &Service{Store: stub, Cache: NewCache(testCacheClient(t), time.Minute), DefaultLimit: 20}

	first, err := svc.Products(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	second, err := svc.Products(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, stub.listCalls)
}

func TestProductsClampsPagination(t *testing.T) {
	stub := &stubProducts{}
	svc := &Service{Store: stub, DefaultLimit: 20, MaxLimit: 50}

	result, err := svc.Products(context.Background(), ListParams{Page: -3, Limit: 900})
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 50, result.Limit)
}

func TestProductBySlugNotFound(t *testing.T) {
	svc := &Service{Store: &stubProducts{}}
	_, err := svc.ProductBySlug(context.Background(), "missing")
	require.Error(t, err)
}

func TestCreateProductInvalidatesCache(t *testing.T) {
	stub := &stubProducts{products: []store.Product{testProduct("tee")}}
	svc := &Service{Store: stub, Cache: NewCache(testCacheClient(t), time.Minute), DefaultLimit: 20}

	_, err := svc.Products(context.Background(), ListParams{})
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), testProduct("hoodie"))
	require.NoError(t, err)

	result, err := svc.Products(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, 2, stub.listCalls)
}
