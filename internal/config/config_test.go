package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "kyc-documents", cfg.Storage.Bucket)
	assert.Equal(t, "http://localhost:9090", cfg.Storage.PublicBaseURL)
	assert.Equal(t, 15, cfg.Worker.SweepIntervalMinutes)
	assert.Equal(t, 10, cfg.Worker.OrphanGraceMinutes)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, 30, cfg.Worker.CleanupDelaySeconds)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("STORAGE_MAX_UPLOAD_MB", "25")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "prod-signing-key")

	cfg := LoadConfig()

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 25, cfg.Storage.MaxUploadMB)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.True(t, cfg.Redis.Disabled)
	assert.True(t, cfg.IsProduction())
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENVIRONMENT", "production")

	cfg := LoadConfig()
	assert.Equal(t, DefaultJWTSecret, cfg.JWT.Secret)
	assert.ErrorIs(t, cfg.Validate(), ErrDefaultJWTSecret)

	cfg.Environment = "development"
	assert.NoError(t, cfg.Validate())
}

func TestLoadSecurityConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://estatehub.example, https://admin.estatehub.example,")

	cfg := LoadSecurityConfig()

	assert.Equal(t, float64(50), cfg.IPRateLimit)
	assert.Equal(t, 20, cfg.IPRateBurst)
	assert.Equal(t, []string{"https://estatehub.example", "https://admin.estatehub.example"}, cfg.CORSAllowedOrigins)
}
