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

// PaymentNotification is a parsed payment email awaiting or past
// reconciliation against an order.
type PaymentNotification struct {
	ID             uuid.UUID       `json:"id"`
	Provider       string          `json:"provider"`
	Reference      string          `json:"reference"`
	Payer          string          `json:"payer"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Subject        string          `json:"subject"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	MatchedOrderID *uuid.UUID      `json:"matchedOrderId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Inbox persists parsed payment notifications.
type Inbox struct {
	DB DB
}

// WithTx returns a copy of the store bound to the given transaction.
func (s Inbox) WithTx(tx pgx.Tx) Inbox {
	return Inbox{DB: tx}
}

const notificationColumns = `id, provider, reference, payer, amount, currency,
	subject, received_at, matched_order_id, created_at`

// Insert stores a parsed notification. Duplicate provider references are
// rejected so replayed webhook deliveries do not double-match.
func (s Inbox) Insert(ctx context.Context, n PaymentNotification) (PaymentNotification, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO payment_notifications
		(provider, reference, payer, amount, currency, subject, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (provider, reference) DO NOTHING
		RETURNING id, created_at`,
		n.Provider, n.Reference, n.Payer, n.Amount, n.Currency, n.Subject, n.ReceivedAt)
	var id pgtype.UUID
	if err := row.Scan(&id, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentNotification{}, ErrDuplicate
		}
		return PaymentNotification{}, fmt.Errorf("insert payment notification: %w", err)
	}
	n.ID = uuid.UUID(id.Bytes)
	return n, nil
}

// Get fetches one notification by id.
func (s Inbox) Get(ctx context.Context, id uuid.UUID) (PaymentNotification, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+notificationColumns+` FROM payment_notifications WHERE id = $1`, toPgUUID(id))
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentNotification{}, ErrNotFound
		}
		return PaymentNotification{}, fmt.Errorf("get payment notification: %w", err)
	}
	return n, nil
}

// ListUnmatched returns notifications not yet reconciled, oldest first.
func (s Inbox) ListUnmatched(ctx context.Context, limit int32) ([]PaymentNotification, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+notificationColumns+` FROM payment_notifications
		WHERE matched_order_id IS NULL ORDER BY received_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmatched notifications: %w", err)
	}
	defer rows.Close()

	var out []PaymentNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkMatched links a notification to the order it paid. Fails with
// ErrNotFound once the notification is already matched.
func (s Inbox) MarkMatched(ctx context.Context, id, orderID uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `UPDATE payment_notifications SET matched_order_id = $2
		WHERE id = $1 AND matched_order_id IS NULL`, toPgUUID(id), toPgUUID(orderID))
	if err != nil {
		return fmt.Errorf("mark notification matched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (PaymentNotification, error) {
	var (
		n       PaymentNotification
		id      pgtype.UUID
		orderID pgtype.UUID
	)
	err := row.Scan(&id, &n.Provider, &n.Reference, &n.Payer, &n.Amount,
		&n.Currency, &n.Subject, &n.ReceivedAt, &orderID, &n.CreatedAt)
	if err != nil {
		return PaymentNotification{}, err
	}
	n.ID = uuid.UUID(id.Bytes)
	if orderID.Valid {
		o := uuid.UUID(orderID.Bytes)
		n.MatchedOrderID = &o
	}
	return n, nil
}
