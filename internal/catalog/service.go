package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/store"
)

// Store captures the product queries the catalog needs.
type Store interface {
	List(ctx context.Context, params store.ListProductsParams) ([]store.Product, error)
	Count(ctx context.Context, category string) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (store.Product, error)
	GetBySlug(ctx context.Context, slug string) (store.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]store.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p store.Product) (store.Product, error)
	Update(ctx context.Context, p store.Product) error
}

// Service orchestrates catalog queries, pagination, and caching.
type Service struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Category string
	Page     int
	Limit    int
}

// ListResult is one page of products with its pagination metadata.
type ListResult struct {
	Items []store.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// Products returns one page of active products.
func (s *Service) Products(ctx context.Context, params ListParams) (ListResult, error) {
	if s == nil || s.Store == nil {
		return ListResult{}, errors.New("catalog service not configured")
	}
	params = s.clamp(params)

	key := fmt.Sprintf("products:%s:%d:%d", params.Category, params.Page, params.Limit)
	var cached ListResult
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	offset := int32((params.Page - 1) * params.Limit)
	items, err := s.Store.List(ctx, store.ListProductsParams{
		Category: params.Category,
		Limit:    int32(params.Limit),
		Offset:   offset,
	})
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.Store.Count(ctx, params.Category)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []store.Product{}
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	_ = s.Cache.SetJSON(ctx, key, result)
	return result, nil
}

// ProductBySlug returns one active product.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (store.Product, error) {
	if s == nil || s.Store == nil {
		return store.Product{}, errors.New("catalog service not configured")
	}
	key := "product:" + slug
	var cached store.Product
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.Store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return store.Product{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, p)
	return p, nil
}

// Categories returns the distinct categories of active products.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("catalog service not configured")
	}
	var cached []string
	if ok, err := s.Cache.GetJSON(ctx, "categories", &cached); err == nil && ok {
		return cached, nil
	}
	categories, err := s.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	_ = s.Cache.SetJSON(ctx, "categories", categories)
	return categories, nil
}

// CreateProduct stores a new product and drops the catalog cache.
func (s *Service) CreateProduct(ctx context.Context, p store.Product) (store.Product, error) {
	if s == nil || s.Store == nil {
		return store.Product{}, errors.New("catalog service not configured")
	}
	created, err := s.Store.Create(ctx, p)
	if err != nil {
		return store.Product{}, err
	}
	_ = s.Cache.Invalidate(ctx)
	return created, nil
}

// UpdateProduct replaces a product and drops the catalog cache.
func (s *Service) UpdateProduct(ctx context.Context, p store.Product) error {
	if s == nil || s.Store == nil {
		return errors.New("catalog service not configured")
	}
	if err := s.Store.Update(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return err
	}
	return s.Cache.Invalidate(ctx)
}

func (s *Service) clamp(params ListParams) ListParams {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && params.Limit > s.MaxLimit {
		params.Limit = s.MaxLimit
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	return params
}
