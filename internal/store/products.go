package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item. Color and Size are the variant axes
// the promotion conditions can constrain.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Products persists the catalog.
type Products struct {
	DB DB
}

// ListProductsParams filters and pages the catalog listing.
type ListProductsParams struct {
	Category string
	Limit    int32
	Offset   int32
}

const productColumns = `id, slug, name, category, color, size, price, stock, is_active, created_at`

// List returns active products, newest first, optionally filtered by category.
func (s Products) List(ctx context.Context, params ListProductsParams) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE is_active AND ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, params.Category, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Count returns the number of active products matching the category filter.
func (s Products) Count(ctx context.Context, category string) (int64, error) {
	var n int64
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE is_active AND ($1 = '' OR category = $1)`, category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// GetByID fetches one product regardless of active state.
func (s Products) GetByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, toPgUUID(id))
	return scanProductRow(row, "get product")
}

// GetBySlug fetches one active product by its URL slug.
func (s Products) GetBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1 AND is_active`, slug)
	return scanProductRow(row, "get product by slug")
}

// GetByIDs fetches products in bulk for cart snapshot resolution. Missing
// ids are simply absent from the result.
func (s Products) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, toPgUUIDSlice(ids))
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Categories returns the distinct categories of active products.
func (s Products) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT category FROM products WHERE is_active ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a product and returns it with its assigned id.
func (s Products) Create(ctx context.Context, p Product) (Product, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO products (slug, name, category, color, size, price, stock, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at`,
		p.Slug, p.Name, p.Category, p.Color, p.Size, p.Price, p.Stock, p.IsActive)
	var id pgtype.UUID
	if err := row.Scan(&id, &p.CreatedAt); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	p.ID = uuid.UUID(id.Bytes)
	return p, nil
}

// Update replaces the mutable fields of a product.
func (s Products) Update(ctx context.Context, p Product) error {
	tag, err := s.DB.Exec(ctx, `UPDATE products SET
		slug = $2, name = $3, category = $4, color = $5, size = $6,
		price = $7, stock = $8, is_active = $9, updated_at = now()
		WHERE id = $1`,
		toPgUUID(p.ID), p.Slug, p.Name, p.Category, p.Color, p.Size, p.Price, p.Stock, p.IsActive)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock applies a signed delta to a product's stock, refusing to go
// negative.
func (s Products) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := s.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`, toPgUUID(id), delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProductRow(row pgx.Row, op string) (Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p  Product
		id pgtype.UUID
	)
	err := row.Scan(&id, &p.Slug, &p.Name, &p.Category, &p.Color, &p.Size,
		&p.Price, &p.Stock, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return Product{}, err
	}
	p.ID = uuid.UUID(id.Bytes)
	return p, nil
}
