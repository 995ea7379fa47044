package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/identity"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.AppPort)
	assert.Equal(t, "migrations", cfg.MigrationDir)
	assert.Equal(t, "seeds", cfg.SeedDir)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 240*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, identity.RevokeNone, cfg.Revocation())
	assert.False(t, cfg.HistoryDedup)
	assert.Zero(t, cfg.HistoryLimit)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIDTUBE_PORT", "9090")
	t.Setenv("VIDTUBE_REVOCATION_POLICY", "ALL")
	t.Setenv("VIDTUBE_HISTORY_DEDUP", "true")
	t.Setenv("VIDTUBE_HISTORY_LIMIT", "50")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VIDTUBE_S3_BUCKET", "images")
	t.Setenv("VIDTUBE_S3_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.AppPort)
	assert.Equal(t, identity.RevokeAll, cfg.Revocation())
	assert.True(t, cfg.HistoryDedup)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)

	store := cfg.ObjectStore()
	assert.Equal(t, "images", store.Bucket)
	assert.Equal(t, "us-east-1", store.Region)
	assert.Equal(t, "https://cdn.example.com", store.PublicBaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown revocation policy", "VIDTUBE_REVOCATION_POLICY", "sometimes"},
		{"negative history limit", "VIDTUBE_HISTORY_LIMIT", "-1"},
		{"port out of range", "VIDTUBE_PORT", "70000"},
		{"malformed duration", "VIDTUBE_STORE_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateServe(t *testing.T) {
	base := Config{
		DatabaseURL:        "postgres://localhost/vidtube",
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
	}
	require.NoError(t, base.ValidateServe())

	missing := base
	missing.AccessTokenSecret = ""
	assert.EqualError(t, missing.ValidateServe(), "VIDTUBE_ACCESS_TOKEN_SECRET is required")

	same := base
	same.RefreshTokenSecret = same.AccessTokenSecret
	assert.Error(t, same.ValidateServe())
}
