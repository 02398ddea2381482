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

// Cart is a mutable shopping cart owned by a customer session.
type Cart struct {
	ID         uuid.UUID `json:"id"`
	CustomerID string    `json:"customerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CartItem is one product line inside a cart joined with the product fields
// the pricing snapshot needs.
type CartItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Category    string          `json:"category"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Carts persists carts and their items.
type Carts struct {
	DB DB
}

// Create opens an empty cart for the given customer.
func (s Carts) Create(ctx context.Context, customerID string) (Cart, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO carts (customer_id) VALUES ($1)
		RETURNING id, customer_id, created_at, updated_at`, customerID)
	return scanCartRow(row, "create cart")
}

// Get fetches a cart header by id.
func (s Carts) Get(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := s.DB.QueryRow(ctx, `SELECT id, customer_id, created_at, updated_at FROM carts WHERE id = $1`, toPgUUID(id))
	return scanCartRow(row, "get cart")
}

// UpsertItem adds a product to the cart or bumps its quantity when the line
// already exists.
func (s Carts) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		toPgUUID(cartID), toPgUUID(productID), quantity)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return s.touch(ctx, cartID)
}

// SetItemQuantity overwrites a line's quantity, removing the line at zero.
func (s Carts) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}
	tag, err := s.DB.Exec(ctx, `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
		toPgUUID(cartID), toPgUUID(productID), quantity)
	if err != nil {
		return fmt.Errorf("set cart item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.touch(ctx, cartID)
}

// RemoveItem deletes one product line from the cart.
func (s Carts) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		toPgUUID(cartID), toPgUUID(productID))
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.touch(ctx, cartID)
}

// Clear empties the cart, used after a successful checkout.
func (s Carts) Clear(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, toPgUUID(cartID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return s.touch(ctx, cartID)
}

// Items returns the cart's lines joined with current product data, in
// insertion order.
func (s Carts) Items(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.DB.Query(ctx, `SELECT ci.id, ci.product_id, p.name, p.category, p.color, p.size, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, toPgUUID(cartID))
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var (
			item      CartItem
			id        pgtype.UUID
			productID pgtype.UUID
		)
		err := rows.Scan(&id, &productID, &item.ProductName, &item.Category,
			&item.Color, &item.Size, &item.Quantity, &item.UnitPrice)
		if err != nil {
			return nil, err
		}
		item.ID = uuid.UUID(id.Bytes)
		item.ProductID = uuid.UUID(productID.Bytes)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s Carts) touch(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, toPgUUID(cartID))
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func scanCartRow(row pgx.Row, op string) (Cart, error) {
	var (
		c  Cart
		id pgtype.UUID
	)
	err := row.Scan(&id, &c.CustomerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	c.ID = uuid.UUID(id.Bytes)
	return c, nil
}
