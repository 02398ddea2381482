package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newWebhookRouter(secret string) http.Handler {
	h := Webhook{
		Parsers: map[string]Parser{"paypal": PayPalParser{}},
		Secret:  secret,
		Log:     zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Post("/webhooks/inbox/{provider}", h.Handle)
	return r
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	r := newWebhookRouter("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbox/paypal", strings.NewReader("{}"))
	req.Header.Set("X-Inbox-Secret", "wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsWhenSecretUnconfigured(t *testing.T) {
	r := newWebhookRouter("")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbox/paypal", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookUnknownProvider(t *testing.T) {
	r := newWebhookRouter("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbox/stripe", strings.NewReader("{}"))
	req.Header.Set("X-Inbox-Secret", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRejectsUnparseableMail(t *testing.T) {
	r := newWebhookRouter("s3cret")

	body := `{"subject":"Weekly newsletter","body":"nothing about money here"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbox/paypal", strings.NewReader(body))
	req.Header.Set("X-Inbox-Secret", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
