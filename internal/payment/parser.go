package payment

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arvhein/backend-merch/internal/common"
)

// ErrUnparseable is returned when an email does not look like a payment
// notification of the parser's provider.
var ErrUnparseable = errors.New("payment: notification not parseable")

// Parsed is the normalized outcome of parsing one notification email.
type Parsed struct {
	Reference  string
	Payer      string
	Amount     decimal.Decimal
	Currency   string
	ReceivedAt time.Time
}

// Parser extracts a payment from one provider's notification emails.
type Parser interface {
	Provider() string
	Parse(subject, body string, receivedAt time.Time) (Parsed, error)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	paypalAmount    = regexp.MustCompile(`(?i)sent you\s+(?:((?-i:[A-Z]{3}))\s*)?[€$£]?\s*([0-9][0-9.,]*)(?:\s+((?-i:[A-Z]{3})))?`)
	paypalPayer     = regexp.MustCompile(`(?i)((?:[\p{L}'-]+ )?[\p{L}'-]+) sent you`)
	paypalReference = regexp.MustCompile(`(?i)transaction\s+id:?\s*([A-Z0-9]{8,24})`)

	revolutAmount    = regexp.MustCompile(`(?i)received\s+(?:((?-i:[A-Z]{3}))\s*)?[€$£]?\s*([0-9][0-9.,]*)(?:\s+((?-i:[A-Z]{3})))?`)
	revolutPayer     = regexp.MustCompile(`(?i)from\s+([\p{L}][\p{L} .'-]{1,60}?)(?:[.,]|$)`)
	revolutReference = regexp.MustCompile(`(?i)reference:?\s*([A-Za-z0-9-]{4,40})`)
)

// PayPalParser reads forwarded PayPal "you've got money" emails.
type PayPalParser struct{}

// Provider implements Parser.
func (PayPalParser) Provider() string { return "paypal" }

// Parse implements Parser.
func (PayPalParser) Parse(subject, body string, receivedAt time.Time) (Parsed, error) {
	text := flatten(subject + " " + body)
	amount, currency, err := extractAmount(paypalAmount, text)
	if err != nil {
		return Parsed{}, err
	}
	parsed := Parsed{
		Amount:     amount,
		Currency:   currency,
		ReceivedAt: receivedAt,
	}
	if m := paypalPayer.FindStringSubmatch(text); m != nil {
		parsed.Payer = strings.TrimSpace(m[1])
	}
	if m := paypalReference.FindStringSubmatch(text); m != nil {
		parsed.Reference = m[1]
	} else {
		parsed.Reference = fallbackReference("paypal", text, receivedAt)
	}
	return parsed, nil
}

// RevolutParser reads forwarded Revolut transfer notification emails.
type RevolutParser struct{}

// Provider implements Parser.
func (RevolutParser) Provider() string { return "revolut" }

// Parse implements Parser.
func (RevolutParser) Parse(subject, body string, receivedAt time.Time) (Parsed, error) {
	text := flatten(subject + " " + body)
	amount, currency, err := extractAmount(revolutAmount, text)
	if err != nil {
		return Parsed{}, err
	}
	parsed := Parsed{
		Amount:     amount,
		Currency:   currency,
		ReceivedAt: receivedAt,
	}
	if m := revolutPayer.FindStringSubmatch(text); m != nil {
		parsed.Payer = strings.TrimSpace(m[1])
	}
	if m := revolutReference.FindStringSubmatch(text); m != nil {
		parsed.Reference = m[1]
	} else {
		parsed.Reference = fallbackReference("revolut", text, receivedAt)
	}
	return parsed, nil
}

// flatten strips HTML tags and collapses whitespace so the regexps work on
// both plain-text and HTML mail bodies.
func flatten(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func extractAmount(pattern *regexp.Regexp, text string) (decimal.Decimal, string, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, "", ErrUnparseable
	}
	raw := strings.ReplaceAll(m[2], ",", "")
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, "", ErrUnparseable
	}
	currency := m[1]
	if currency == "" {
		currency = m[3]
	}
	if currency == "" {
		currency = "EUR"
	}
	return amount, strings.ToUpper(currency), nil
}

// fallbackReference derives a stable id for providers that do not include a
// transaction id in the mail, so replayed forwards stay deduplicated.
func fallbackReference(provider, text string, receivedAt time.Time) string {
	return provider + "-" + common.ShortHash(text, receivedAt.UTC().Format(time.RFC3339))
}
