package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/store"
)

// Store defines the persistence operations required by the event bus.
type Store interface {
	Insert(ctx context.Context, kind string, subjectID uuid.UUID, payload json.RawMessage) (store.Event, error)
}

// Notifier reacts to emitted events (email, task queues, metrics).
type Notifier interface {
	Notify(ctx context.Context, event store.Event) error
}

// Bus persists domain events and fans them out to downstream handlers.
// Notifier failures never fail the emit; they are joined into the returned
// error for the caller to log.
type Bus struct {
	Store     Store
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, kind string, subjectID uuid.UUID, payload any) (store.Event, error) {
	if b == nil || b.Store == nil {
		return store.Event{}, errors.New("events: store not configured")
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return store.Event{}, errors.New("events: kind is required")
	}
	if subjectID == uuid.Nil {
		return store.Event{}, errors.New("events: subject id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return store.Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	event, err := b.Store.Insert(ctx, kind, subjectID, encoded)
	if err != nil {
		return store.Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, event); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return event, joined
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		return encodePayload(json.RawMessage(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}
