package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Event is one persisted domain event.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	SubjectID uuid.UUID       `json:"subjectId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Events persists the domain event log.
type Events struct {
	DB DB
}

// WithTx returns a copy of the store bound to the given transaction.
func (s Events) WithTx(tx pgx.Tx) Events {
	return Events{DB: tx}
}

// Insert appends one event to the log.
func (s Events) Insert(ctx context.Context, kind string, subjectID uuid.UUID, payload json.RawMessage) (Event, error) {
	e := Event{Kind: kind, SubjectID: subjectID, Payload: payload}
	row := s.DB.QueryRow(ctx, `INSERT INTO events (kind, subject_id, payload)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		kind, toPgUUID(subjectID), nullableJSON(payload))
	var id pgtype.UUID
	if err := row.Scan(&id, &e.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	e.ID = uuid.UUID(id.Bytes)
	return e, nil
}

// ListBySubject returns the events of one subject, oldest first.
func (s Events) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, kind, subject_id, payload, created_at
		FROM events WHERE subject_id = $1 ORDER BY created_at ASC, id`, toPgUUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			id      pgtype.UUID
			subject pgtype.UUID
			payload []byte
		)
		if err := rows.Scan(&id, &e.Kind, &subject, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = uuid.UUID(id.Bytes)
		e.SubjectID = uuid.UUID(subject.Bytes)
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
