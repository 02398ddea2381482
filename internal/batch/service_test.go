package batch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/store"
)

type stubBatches struct {
	batches map[uuid.UUID]store.Batch
	setErr  error
}

func (s *stubBatches) Create(_ context.Context, name, notes string) (store.Batch, error) {
	b := store.Batch{ID: uuid.New(), Name: name, Notes: notes, Status: store.BatchOpen}
	s.batches[b.ID] = b
	return b, nil
}

func (s *stubBatches) Get(_ context.Context, id uuid.UUID) (store.Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return store.Batch{}, store.ErrNotFound
	}
	return b, nil
}

func (s *stubBatches) List(_ context.Context, _ int32) ([]store.Batch, error) {
	out := make([]store.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b)
	}
	return out, nil
}

func (s *stubBatches) SetStatus(_ context.Context, id uuid.UUID, from, to string) error {
	if s.setErr != nil {
		return s.setErr
	}
	b, ok := s.batches[id]
	if !ok || b.Status != from {
		return store.ErrNotFound
	}
	b.Status = to
	s.batches[id] = b
	return nil
}

type stubOrders struct {
	orders   map[uuid.UUID]store.Order
	assigned int64
}

func (s *stubOrders) ListByBatch(_ context.Context, batchID uuid.UUID) ([]store.Order, error) {
	var out []store.Order
	for _, o := range s.orders {
		if o.BatchID != nil && *o.BatchID == batchID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubOrders) AssignToBatch(_ context.Context, batchID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range orderIDs {
		o, ok := s.orders[id]
		if !ok || o.Status != store.OrderPaid {
			continue
		}
		bid := batchID
		o.BatchID = &bid
		o.Status = store.OrderInBatch
		s.orders[id] = o
		n++
	}
	s.assigned = n
	return n, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return store.ErrNotFound
	}
	o.Status = to
	s.orders[id] = o
	return nil
}

func (s *stubOrders) SetTracking(_ context.Context, id uuid.UUID, code string) error {
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.TrackingCode = &code
	s.orders[id] = o
	return nil
}

type stubEventStore struct {
	kinds []string
}

func (s *stubEventStore) Insert(_ context.Context, kind string, subjectID uuid.UUID, _ json.RawMessage) (store.Event, error) {
	s.kinds = append(s.kinds, kind)
	return store.Event{ID: uuid.New(), Kind: kind, SubjectID: subjectID}, nil
}

func newTestService() (*Service, *stubBatches, *stubOrders, *stubEventStore, *common.InMemoryEmail) {
	batches := &stubBatches{batches: map[uuid.UUID]store.Batch{}}
	orders := &stubOrders{orders: map[uuid.UUID]store.Order{}}
	es := &stubEventStore{}
	mail := &common.InMemoryEmail{}
	svc := &Service{
		Batches:         batches,
		Orders:          orders,
		Events:          &events.Bus{Store: es},
		Mail:            mail,
		NotifyOnShipped: true,
	}
	return svc, batches, orders, es, mail
}

func TestAssignRequiresOpenBatch(t *testing.T) {
	svc, batches, orders, _, _ := newTestService()
	ctx := context.Background()

	b, err := svc.Create(ctx, "Drop 7", "")
	require.NoError(t, err)

	paid := store.Order{ID: uuid.New(), Code: "MRC-AAAAAA", Status: store.OrderPaid, Email: "a@example.com"}
	pending := store.Order{ID: uuid.New(), Code: "MRC-BBBBBB", Status: store.OrderPendingPayment}
	orders.orders[paid.ID] = paid
	orders.orders[pending.ID] = pending

	n, err := svc.Assign(ctx, b.ID, []uuid.UUID{paid.ID, pending.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only paid orders join the batch")

	require.NoError(t, batches.SetStatus(ctx, b.ID, store.BatchOpen, store.BatchOrdered))
	_, err = svc.Assign(ctx, b.ID, []uuid.UUID{paid.ID})
	assert.ErrorIs(t, err, ErrBatchNotOpen)
}

func TestAdvanceRejectsSkippedStages(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	b, err := svc.Create(ctx, "Drop 8", "")
	require.NoError(t, err)

	_, err = svc.Advance(ctx, b.ID, store.BatchShipped)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Advance(ctx, b.ID, store.BatchOrdered)
	require.NoError(t, err)
	assert.Equal(t, store.BatchOrdered, got.Status)
}

func TestAdvanceToShippedNotifiesOrders(t *testing.T) {
	svc, _, orders, es, mail := newTestService()
	ctx := context.Background()

	b, err := svc.Create(ctx, "Drop 9", "")
	require.NoError(t, err)

	o := store.Order{ID: uuid.New(), Code: "MRC-CCCCCC", Status: store.OrderPaid, Email: "c@example.com"}
	orders.orders[o.ID] = o
	_, err = svc.Assign(ctx, b.ID, []uuid.UUID{o.ID})
	require.NoError(t, err)

	tracking := "DHL123456789"
	require.NoError(t, svc.SetTracking(ctx, o.ID, tracking))

	for _, to := range []string{store.BatchOrdered, store.BatchArrived, store.BatchShipped} {
		_, err = svc.Advance(ctx, b.ID, to)
		require.NoError(t, err)
	}

	assert.Equal(t, store.OrderShipped, orders.orders[o.ID].Status)
	assert.Contains(t, es.kinds, events.KindOrderShipped)
	assert.Contains(t, es.kinds, events.KindBatchStatusChanged)

	sent := mail.Outbox
	require.Len(t, sent, 1)
	assert.Equal(t, "c@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, tracking)
}
