package payment

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/obs"
	"github.com/arvhein/backend-merch/internal/store"
)

// Webhook ingests forwarded notification emails at
// POST /webhooks/inbox/{provider}. The mail forwarder authenticates with a
// shared secret header.
type Webhook struct {
	Inbox   store.Inbox
	Parsers map[string]Parser
	Matcher *Matcher
	Secret  string
	Log     zerolog.Logger
}

type inboundMail struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Handle parses, stores, and immediately tries to match one forwarded mail.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Inbox-Secret")), []byte(h.Secret)) != 1 {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid inbox secret", nil)
		return
	}
	parser, ok := h.Parsers[chi.URLParam(r, "provider")]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown provider", nil)
		return
	}
	var mail inboundMail
	if err := json.NewDecoder(r.Body).Decode(&mail); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if mail.ReceivedAt.IsZero() {
		mail.ReceivedAt = time.Now()
	}

	parsed, err := parser.Parse(mail.Subject, mail.Body, mail.ReceivedAt)
	if err != nil {
		if errors.Is(err, ErrUnparseable) {
			h.Log.Warn().Str("provider", parser.Provider()).Str("subject", mail.Subject).Msg("unparseable inbox mail")
			countInbox(parser.Provider(), "unparseable")
			common.JSONError(w, http.StatusUnprocessableEntity, "UNPARSEABLE", "mail does not look like a payment notification", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	notification, err := h.Inbox.Insert(r.Context(), store.PaymentNotification{
		Provider:  parser.Provider(),
		Reference: parsed.Reference,
		Payer:     parsed.Payer,
		Amount:    parsed.Amount,
		Currency:  parsed.Currency,
		// searchable text for order-code matching, not just the raw subject
		Subject:    flatten(mail.Subject + " " + mail.Body),
		ReceivedAt: parsed.ReceivedAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			countInbox(parser.Provider(), "duplicate")
			common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": "duplicate"}})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	countInbox(parser.Provider(), "stored")
	if h.Matcher != nil {
		if err := h.Matcher.MatchOne(r.Context(), notification); err != nil {
			h.Log.Error().Err(err).Str("provider", notification.Provider).Msg("match ingested payment")
		}
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"id": notification.ID}})
}

func countInbox(provider, result string) {
	if obs.InboxNotificationsTotal != nil {
		obs.InboxNotificationsTotal.WithLabelValues(provider, result).Inc()
	}
}

// AdminHandler lists unmatched notifications for manual review.
type AdminHandler struct {
	Inbox store.Inbox
}

// ListUnmatched handles GET /api/v1/admin/payments/unmatched.
func (h AdminHandler) ListUnmatched(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.Inbox.ListUnmatched(r.Context(), 200)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	if notifications == nil {
		notifications = []store.PaymentNotification{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": notifications})
}
