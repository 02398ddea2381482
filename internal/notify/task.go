package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/arvhein/backend-merch/internal/store"
)

// TaskEmailDelivery is the asynq task type the API enqueues and the worker
// consumes for transactional email.
const TaskEmailDelivery = "notify:email"

// TaskNotifier forwards domain events to the worker via asynq instead of
// sending email on the request path.
type TaskNotifier struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// Notify implements the events.Notifier interface by enqueueing the event.
func (n TaskNotifier) Notify(ctx context.Context, event store.Event) error {
	if n.Client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify enqueue: encode event: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(event.ID.String())}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	_, err = n.Client.EnqueueContext(ctx, asynq.NewTask(TaskEmailDelivery, payload), opts...)
	if err != nil {
		return fmt.Errorf("notify enqueue: %w", err)
	}
	return nil
}
