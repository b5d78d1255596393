package config

import (
	"testing"
	"time"

	"HealthBot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFirebaseEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "/secrets/sa.json")
	t.Setenv("FIREBASE_DATABASE_URL", "https://example.firebaseio.com")
}

func TestLoadDefaults(t *testing.T) {
	setFirebaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, model.VariantBasic, cfg.Flow.Variant)
	assert.Equal(t, 24*time.Hour, cfg.Flow.SessionTTL)
	assert.Equal(t, StoreFirebase, cfg.Store.Backend)
	assert.Empty(t, cfg.Session.RedisAddr)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Assistant.APIKey)
	assert.Equal(t, int64(400), cfg.Assistant.MaxTokens)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FLOW_VARIANT", "Health")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/health")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ASSISTANT_MAX_TOKENS", "800")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, model.VariantHealth, cfg.Flow.Variant)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Session.RedisDB)
	assert.Equal(t, 2*time.Hour, cfg.Flow.SessionTTL)
	assert.Equal(t, int64(800), cfg.Assistant.MaxTokens)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing token", map[string]string{"BOT_TOKEN": ""}, "BOT_TOKEN"},
		{"bad variant", map[string]string{"FLOW_VARIANT": "premium"}, "FLOW_VARIANT"},
		{"bad backend", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "POSTGRES_DSN"},
		{"sheets without id", map[string]string{"STORE_BACKEND": "sheets", "GOOGLE_CREDENTIALS_PATH": "/c.json"}, "SPREADSHEET_ID"},
		{"firebase without url", map[string]string{"FIREBASE_DATABASE_URL": ""}, "FIREBASE_DATABASE_URL"},
		{"bad ttl", map[string]string{"SESSION_TTL": "soon"}, "SESSION_TTL"},
		{"negative ttl", map[string]string{"SESSION_TTL": "-1h"}, "SESSION_TTL"},
		{"bad redis db", map[string]string{"REDIS_DB": "one"}, "REDIS_DB"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setFirebaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
