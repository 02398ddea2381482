package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/obs"
	"github.com/arvhein/backend-merch/internal/store"
)

var (
	// ErrInvalidTransition is returned when a batch status change would
	// break the production state machine.
	ErrInvalidTransition = errors.New("invalid batch status transition")
	// ErrBatchNotOpen is returned when assigning orders to a batch that
	// already went into production.
	ErrBatchNotOpen = errors.New("batch is not open")
)

// BatchStore captures the batch persistence methods the service needs.
type BatchStore interface {
	Create(ctx context.Context, name, notes string) (store.Batch, error)
	Get(ctx context.Context, id uuid.UUID) (store.Batch, error)
	List(ctx context.Context, limit int32) ([]store.Batch, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) error
}

// OrderStore captures the order methods batch fulfillment needs.
type OrderStore interface {
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]store.Order, error)
	AssignToBatch(ctx context.Context, batchID uuid.UUID, orderIDs []uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetTracking(ctx context.Context, id uuid.UUID, trackingCode string) error
}

// Service coordinates production batches: grouping paid orders, walking the
// batch through the production stages, and notifying customers on shipment.
type Service struct {
	Batches         BatchStore
	Orders          OrderStore
	Events          *events.Bus
	Mail            common.EmailSender
	NotifyOnShipped bool
}

// allowedTransition is the forward-only production state machine.
var allowedTransition = map[string]string{
	store.BatchOpen:    store.BatchOrdered,
	store.BatchOrdered: store.BatchArrived,
	store.BatchArrived: store.BatchShipped,
}

// Create opens a new batch.
func (s *Service) Create(ctx context.Context, name, notes string) (store.Batch, error) {
	if s == nil || s.Batches == nil {
		return store.Batch{}, errors.New("batch service not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Batch{}, fmt.Errorf("batch name is required")
	}
	return s.Batches.Create(ctx, name, notes)
}

// Assign moves paid orders into an open batch and reports how many were
// actually assigned.
func (s *Service) Assign(ctx context.Context, batchID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	if s == nil || s.Batches == nil || s.Orders == nil {
		return 0, errors.New("batch service not configured")
	}
	b, err := s.Batches.Get(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if b.Status != store.BatchOpen {
		return 0, ErrBatchNotOpen
	}
	return s.Orders.AssignToBatch(ctx, batchID, orderIDs)
}

// Advance moves a batch to the next production stage. Shipping the batch
// marks every contained order shipped and notifies its customer.
func (s *Service) Advance(ctx context.Context, batchID uuid.UUID, to string) (store.Batch, error) {
	if s == nil || s.Batches == nil {
		return store.Batch{}, errors.New("batch service not configured")
	}
	b, err := s.Batches.Get(ctx, batchID)
	if err != nil {
		return store.Batch{}, err
	}
	if allowedTransition[b.Status] != to {
		return store.Batch{}, ErrInvalidTransition
	}
	if err := s.Batches.SetStatus(ctx, batchID, b.Status, to); err != nil {
		return store.Batch{}, err
	}
	b.Status = to

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.KindBatchStatusChanged, batchID, map[string]any{"status": to})
	}
	if to == store.BatchShipped {
		if err := s.shipOrders(ctx, batchID); err != nil {
			return b, err
		}
	}
	return b, nil
}

// SetTracking records the carrier tracking code for one order in the batch.
func (s *Service) SetTracking(ctx context.Context, orderID uuid.UUID, trackingCode string) error {
	if s == nil || s.Orders == nil {
		return errors.New("batch service not configured")
	}
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return fmt.Errorf("tracking code is required")
	}
	return s.Orders.SetTracking(ctx, orderID, trackingCode)
}

func (s *Service) shipOrders(ctx context.Context, batchID uuid.UUID) error {
	orders, err := s.Orders.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	var joined error
	for _, o := range orders {
		if err := s.Orders.UpdateStatus(ctx, o.ID, store.OrderInBatch, store.OrderShipped); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// already shipped or cancelled, skip
				continue
			}
			joined = errors.Join(joined, err)
			continue
		}
		if obs.BatchOrdersShippedTotal != nil {
			obs.BatchOrdersShippedTotal.Inc()
		}
		if s.Events != nil {
			_, _ = s.Events.Emit(ctx, events.KindOrderShipped, o.ID, map[string]any{"code": o.Code})
		}
		if s.NotifyOnShipped && s.Mail != nil && o.Email != "" {
			subject := fmt.Sprintf("Your order %s is on its way", o.Code)
			body := shippedEmailBody(o)
			if err := s.Mail.Send(o.Email, subject, body); err != nil {
				joined = errors.Join(joined, fmt.Errorf("notify %s: %w", o.Code, err))
			}
		}
	}
	return joined
}

func shippedEmailBody(o store.Order) string {
	var sb strings.Builder
	sb.WriteString("<p>Good news, your order <b>" + o.Code + "</b> has shipped.</p>")
	if o.TrackingCode != nil && *o.TrackingCode != "" {
		sb.WriteString("<p>Tracking code: " + *o.TrackingCode + "</p>")
	}
	return sb.String()
}
