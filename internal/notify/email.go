package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/store"
)

// EmailNotifier turns domain events into transactional emails. It only
// reacts to events that carry a recipient email in their payload.
type EmailNotifier struct {
	Mail        common.EmailSender
	Enabled     bool
	StoreName   string
	KindToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event store.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.KindToggles != nil {
		if enabled, ok := n.KindToggles[event.Kind]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	subject, body, ok := n.render(event.Kind, payload)
	if !ok {
		return nil
	}
	return n.Mail.Send(to, subject, body)
}

// HandleTask lets the notifier run as an asynq handler on the worker. The
// task payload is the JSON-encoded domain event.
func (n EmailNotifier) HandleTask(ctx context.Context, t *asynq.Task) error {
	var event store.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("email notify: decode task: %w", err)
	}
	return n.Notify(ctx, event)
}

func (n EmailNotifier) render(kind string, payload map[string]any) (subject, body string, ok bool) {
	name := n.StoreName
	if name == "" {
		name = "the merch store"
	}
	code, _ := payload["code"].(string)
	switch kind {
	case events.KindOrderCreated:
		subject = fmt.Sprintf("Order %s received", code)
		body = fmt.Sprintf("<p>Thanks for your order at %s.</p><p>Quote <b>%s</b> in your payment note so we can match it.</p>", name, code)
		return subject, body, true
	case events.KindOrderPaid:
		subject = fmt.Sprintf("Payment received for %s", code)
		body = fmt.Sprintf("<p>We received your payment for order <b>%s</b>. It will join the next production batch.</p>", code)
		return subject, body, true
	default:
		return "", "", false
	}
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"email", "customerEmail", "recipient"} {
		if val, ok := payload[key].(string); ok {
			val = strings.TrimSpace(val)
			if val != "" {
				return val
			}
		}
	}
	return ""
}
