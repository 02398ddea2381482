package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/store"
)

type stubEventStore struct {
	inserted []store.Event
	err      error
}

func (s *stubEventStore) Insert(_ context.Context, kind string, subjectID uuid.UUID, payload json.RawMessage) (store.Event, error) {
	if s.err != nil {
		return store.Event{}, s.err
	}
	event := store.Event{
		ID:        uuid.New(),
		Kind:      kind,
		SubjectID: subjectID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	s.inserted = append(s.inserted, event)
	return event, nil
}

type captureNotifier struct {
	events []store.Event
	err    error
}

func (n *captureNotifier) Notify(_ context.Context, event store.Event) error {
	n.events = append(n.events, event)
	return n.err
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	st := &stubEventStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{notifier}}

	subject := uuid.New()
	event, err := bus.Emit(context.Background(), events.KindOrderCreated, subject, map[string]string{"code": "MRC-1"})
	require.NoError(t, err)
	require.Equal(t, events.KindOrderCreated, event.Kind)
	require.Equal(t, subject, event.SubjectID)
	require.Len(t, st.inserted, 1)
	require.Len(t, notifier.events, 1)
	require.JSONEq(t, `{"code":"MRC-1"}`, string(event.Payload))
}

func TestEmitNotifierFailureDoesNotDropEvent(t *testing.T) {
	st := &stubEventStore{}
	bus := &events.Bus{
		Store:     st,
		Notifiers: []events.Notifier{&captureNotifier{err: errors.New("smtp down")}},
	}
	_, err := bus.Emit(context.Background(), events.KindOrderPaid, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, st.inserted, 1)
}

func TestEmitValidation(t *testing.T) {
	bus := &events.Bus{Store: &stubEventStore{}}

	_, err := bus.Emit(context.Background(), "", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.KindOrderCreated, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.KindOrderCreated, uuid.New(), json.RawMessage("{broken"))
	require.Error(t, err)
}
