package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestPayPalParserPlainText(t *testing.T) {
	parsed, err := PayPalParser{}.Parse(
		"You've got money",
		"Max Mustermann sent you €42.50 EUR for order MRC-ABC234. Transaction ID: 7AB12345CD678901E",
		receivedAt,
	)
	require.NoError(t, err)
	require.True(t, parsed.Amount.Equal(decimal.RequireFromString("42.50")))
	require.Equal(t, "EUR", parsed.Currency)
	require.Equal(t, "Max Mustermann", parsed.Payer)
	require.Equal(t, "7AB12345CD678901E", parsed.Reference)
	require.Equal(t, receivedAt, parsed.ReceivedAt)
}

func TestPayPalParserHTMLBody(t *testing.T) {
	parsed, err := PayPalParser{}.Parse(
		"You've got money",
		"<html><body><p><b>Jane Doe</b> sent you <span>€19.90</span></p></body></html>",
		receivedAt,
	)
	require.NoError(t, err)
	require.True(t, parsed.Amount.Equal(decimal.RequireFromString("19.90")))
	require.Equal(t, "EUR", parsed.Currency)
	require.Equal(t, "Jane Doe", parsed.Payer)
	require.NotEmpty(t, parsed.Reference)
}

func TestPayPalParserThousandsSeparator(t *testing.T) {
	parsed, err := PayPalParser{}.Parse("", "Someone sent you €1,234.00 EUR", receivedAt)
	require.NoError(t, err)
	require.True(t, parsed.Amount.Equal(decimal.RequireFromString("1234.00")))
}

func TestPayPalParserRejectsUnrelatedMail(t *testing.T) {
	_, err := PayPalParser{}.Parse("Your weekly digest", "Nothing to see here", receivedAt)
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestRevolutParser(t *testing.T) {
	parsed, err := RevolutParser{}.Parse(
		"You received €25.00",
		"You received €25.00 from Erika Musterfrau. Reference: MRC-XYZ789",
		receivedAt,
	)
	require.NoError(t, err)
	require.True(t, parsed.Amount.Equal(decimal.RequireFromString("25.00")))
	require.Equal(t, "EUR", parsed.Currency)
	require.Equal(t, "Erika Musterfrau", parsed.Payer)
	require.Equal(t, "MRC-XYZ789", parsed.Reference)
}

func TestRevolutParserFallbackReferenceIsStable(t *testing.T) {
	first, err := RevolutParser{}.Parse("You received €10.00", "You received €10.00 from A", receivedAt)
	require.NoError(t, err)
	second, err := RevolutParser{}.Parse("You received €10.00", "You received €10.00 from A", receivedAt)
	require.NoError(t, err)
	require.Equal(t, first.Reference, second.Reference)

	other, err := RevolutParser{}.Parse("You received €10.00", "You received €10.00 from B", receivedAt)
	require.NoError(t, err)
	require.NotEqual(t, first.Reference, other.Reference)
}

func TestFlattenStripsTagsAndWhitespace(t *testing.T) {
	require.Equal(t, "a b c", flatten("<div>a</div>\n\n  b\t<br/>c"))
}
