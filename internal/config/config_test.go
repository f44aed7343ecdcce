package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("BUGS_PER_PAGE", "")
	t.Setenv("UPLOAD_ALLOWED_EXTENSIONS", "")
	t.Setenv("REDIS_POOL_SIZE", "")
	t.Setenv("REDIS_DIAL_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 20, cfg.Bugs.PerPage)
	assert.Equal(t, 5, cfg.Bugs.DuplicateLimit)
	assert.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxBytes)
	assert.Contains(t, cfg.Uploads.AllowedExtensions, "docx")
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, 30*time.Second, cfg.Postgres.ConnMaxIdle())
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime())
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BUGS_PER_PAGE", "50")
	t.Setenv("AUTH_SESSION_TTL_HOURS", "2")
	t.Setenv("UPLOAD_ALLOWED_EXTENSIONS", " PNG, txt ,,")
	t.Setenv("REPORTS_CACHE_TTL_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 50, cfg.Bugs.PerPage)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, []string{"png", "txt"}, cfg.Uploads.AllowedExtensions)
	assert.Zero(t, cfg.Reports.CacheTTL())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	assert.Zero(t, AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}
