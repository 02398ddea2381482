package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order statuses. Transitions are validated by the order service; the store
// only enforces them on the guarded UpdateStatus form.
const (
	OrderPendingPayment = "pending_payment"
	OrderPaid           = "paid"
	OrderInBatch        = "in_batch"
	OrderShipped        = "shipped"
	OrderDelivered      = "delivered"
	OrderCancelled      = "cancelled"
)

// Order is a frozen, priced checkout. AppliedPromotions carries the pricing
// result's applied-promotion summaries as stored JSON.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	CustomerID        string          `json:"customerId"`
	Email             string          `json:"email"`
	Status            string          `json:"status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	ShippingCost      decimal.Decimal `json:"shippingCost"`
	Total             decimal.Decimal `json:"total"`
	AppliedPromotions json.RawMessage `json:"appliedPromotions,omitempty"`
	BatchID           *uuid.UUID      `json:"batchId,omitempty"`
	TrackingCode      *string         `json:"trackingCode,omitempty"`
	PaidAt            *time.Time      `json:"paidAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// OrderItem is one frozen line of an order. Gift lines carry a zero price.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	IsGift      bool            `json:"isGift"`
}

// Orders persists orders and their lines.
type Orders struct {
	DB DB
}

// WithTx returns a copy of the store bound to the given transaction.
func (s Orders) WithTx(tx pgx.Tx) Orders {
	return Orders{DB: tx}
}

const orderColumns = `id, code, customer_id, email, status, subtotal, discount,
	shipping_cost, total, applied_promotions, batch_id, tracking_code, paid_at, created_at`

// Create inserts an order with its items. Run inside the checkout transaction.
func (s Orders) Create(ctx context.Context, o Order, items []OrderItem) (Order, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO orders
		(code, customer_id, email, status, subtotal, discount, shipping_cost, total, applied_promotions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at`,
		o.Code, o.CustomerID, o.Email, o.Status, o.Subtotal, o.Discount,
		o.ShippingCost, o.Total, nullableJSON(o.AppliedPromotions))
	var id pgtype.UUID
	if err := row.Scan(&id, &o.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	o.ID = uuid.UUID(id.Bytes)

	for _, item := range items {
		_, err := s.DB.Exec(ctx, `INSERT INTO order_items
			(order_id, product_id, product_name, quantity, unit_price, is_gift)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			toPgUUID(o.ID), toPgUUID(item.ProductID), item.ProductName,
			item.Quantity, item.UnitPrice, item.IsGift)
		if err != nil {
			return Order{}, fmt.Errorf("create order item: %w", err)
		}
	}
	return o, nil
}

// Get fetches one order by id.
func (s Orders) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, toPgUUID(id))
	return scanOrderRow(row, "get order")
}

// GetByCode fetches one order by its human-readable code.
func (s Orders) GetByCode(ctx context.Context, code string) (Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code)
	return scanOrderRow(row, "get order by code")
}

// Items returns the order's frozen lines.
func (s Orders) Items(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, product_id, product_name, quantity, unit_price, is_gift
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, toPgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var (
			item      OrderItem
			id        pgtype.UUID
			productID pgtype.UUID
		)
		err := rows.Scan(&id, &productID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.IsGift)
		if err != nil {
			return nil, err
		}
		item.ID = uuid.UUID(id.Bytes)
		item.ProductID = uuid.UUID(productID.Bytes)
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListByStatus returns orders in the given status, oldest first.
func (s Orders) ListByStatus(ctx context.Context, status string, limit int32) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListByBatch returns the orders assigned to a fulfillment batch.
func (s Orders) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE batch_id = $1 ORDER BY created_at ASC`, toPgUUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list orders by batch: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// UpdateStatus moves an order from one status to another, failing with
// ErrNotFound when the order is not currently in the expected status.
func (s Orders) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, toPgUUID(id), from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid transitions a pending order to paid and stamps the payment time.
func (s Orders) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = $2, paid_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`, toPgUUID(id), OrderPaid, paidAt, OrderPendingPayment)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignToBatch moves paid orders into a batch, skipping orders that are not
// currently paid. Returns the number of orders actually assigned.
func (s Orders) AssignToBatch(ctx context.Context, batchID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET batch_id = $1, status = $2, updated_at = now()
		WHERE id = ANY($3) AND status = $4`,
		toPgUUID(batchID), OrderInBatch, toPgUUIDSlice(orderIDs), OrderPaid)
	if err != nil {
		return 0, fmt.Errorf("assign orders to batch: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetTracking records the carrier tracking code for one order.
func (s Orders) SetTracking(ctx context.Context, id uuid.UUID, trackingCode string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET tracking_code = $2, updated_at = now() WHERE id = $1`,
		toPgUUID(id), trackingCode)
	if err != nil {
		return fmt.Errorf("set order tracking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableJSON(data json.RawMessage) []byte {
	if len(data) == 0 {
		return nil
	}
	return data
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrderRow(row pgx.Row, op string) (Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		id      pgtype.UUID
		applied []byte
		batchID pgtype.UUID
	)
	err := row.Scan(&id, &o.Code, &o.CustomerID, &o.Email, &o.Status,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Total,
		&applied, &batchID, &o.TrackingCode, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	o.ID = uuid.UUID(id.Bytes)
	o.AppliedPromotions = applied
	if batchID.Valid {
		b := uuid.UUID(batchID.Bytes)
		o.BatchID = &b
	}
	return o, nil
}
