package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/merch",
		"REDIS_URL":            "redis://localhost:6379",
		"INBOX_WEBHOOK_SECRET": "topsecret",
		"SHIPPING_COST":        "",
		"PORT":                 "",
	})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.True(t, cfg.ShippingCost.Equal(decimal.RequireFromString("4.90")))
	assert.Equal(t, 50, cfg.MatcherLimit)
	assert.Equal(t, "120-M", cfg.RateLimitPublic)
}

func TestLoadRequiresInboxSecret(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/merch",
		"REDIS_URL":            "redis://localhost:6379",
		"INBOX_WEBHOOK_SECRET": "",
	})
	require.Error(t, err)
}

func TestLoadParsesLists(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/merch",
		"REDIS_URL":            "redis://localhost:6379",
		"INBOX_WEBHOOK_SECRET": "topsecret",
		"ADMIN_API_KEYS":       "key-1, key-2 ,",
		"CORS_ALLOWED_ORIGINS": "https://shop.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"key-1", "key-2"}, cfg.AdminAPIKeys)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.CORSAllowedOrigins)
}
