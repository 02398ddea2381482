package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Batch statuses, in production order.
const (
	BatchOpen    = "open"
	BatchOrdered = "ordered"
	BatchArrived = "arrived"
	BatchShipped = "shipped"
)

// Batch groups paid orders for one production and shipping run.
type Batch struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Batches persists fulfillment batches.
type Batches struct {
	DB DB
}

const batchColumns = `id, name, status, notes, created_at, updated_at`

// Create opens a new batch.
func (s Batches) Create(ctx context.Context, name, notes string) (Batch, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO batches (name, status, notes) VALUES ($1, $2, $3)
		RETURNING `+batchColumns, name, BatchOpen, notes)
	return scanBatchRow(row, "create batch")
}

// Get fetches one batch by id.
func (s Batches) Get(ctx context.Context, id uuid.UUID) (Batch, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, toPgUUID(id))
	return scanBatchRow(row, "get batch")
}

// List returns batches newest first.
func (s Batches) List(ctx context.Context, limit int32) ([]Batch, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetStatus moves a batch from one status to another, failing with
// ErrNotFound when the batch is not currently in the expected status.
func (s Batches) SetStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE batches SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, toPgUUID(id), from, to)
	if err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBatchRow(row pgx.Row, op string) (Batch, error) {
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func scanBatch(row pgx.Row) (Batch, error) {
	var (
		b  Batch
		id pgtype.UUID
	)
	err := row.Scan(&id, &b.Name, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Batch{}, err
	}
	b.ID = uuid.UUID(id.Bytes)
	return b, nil
}
