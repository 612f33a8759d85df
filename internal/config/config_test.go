package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenantgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGettersPanicBeforeLoad(t *testing.T) {
	_loaded = nil
	assert.Panics(t, func() { Http() })
	assert.Panics(t, func() { Get() })
}

func TestLoadDefault(t *testing.T) {
	LoadDefault()

	assert.Equal(t, 8080, Http().Port)
	assert.Equal(t, "postgres", Store().Driver)
	assert.Equal(t, "knowledge_spaces", Store().Table)
	assert.Equal(t, "custom:tenant_id", Auth().JWT.TenantClaim)
	assert.False(t, Auth().TrustUpstreamAuthorizer)
	assert.Equal(t, 3, Retry().MaxAttempts)
	assert.False(t, Neo4j().Enabled)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
common:
  http:
    port: 9090
  auth:
    jwt:
      secret: from-file
      issuer: https://issuer.test
    api_key:
      cache_ttl: 30s
  store:
    driver: redis
  retry:
    max_attempts: 5
    initial_interval: 250ms
`)
	t.Setenv("TENANTGATE_CONFIG_FILE", path)
	t.Setenv("TENANTGATE_HTTP_PORT", "7070")
	t.Setenv("TENANTGATE_JWT_SECRET", "from-env")

	Load()

	assert.Equal(t, 7070, Http().Port, "env beats file")
	assert.Equal(t, "from-env", Auth().JWT.Secret)
	assert.Equal(t, "https://issuer.test", Auth().JWT.Issuer, "file beats default")
	assert.Equal(t, 30*time.Second, Auth().APIKey.CacheTTL)
	assert.Equal(t, "redis", Store().Driver)
	assert.Equal(t, 5, Retry().MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, Retry().InitialInterval)
	assert.Equal(t, 2*time.Second, Retry().MaxInterval, "unset keys keep defaults")
	assert.NoError(t, Get().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TENANTGATE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	Load()

	assert.Equal(t, 8080, Http().Port)
}

func TestValidate(t *testing.T) {
	LoadDefault()
	cfg := Get()
	cfg.Common.Store.Driver = "sqlite"
	cfg.Common.Retry.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt.secret is required")
	assert.Contains(t, err.Error(), "auth.jwt.issuer is required")
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "retry.max_attempts")
}

func TestEnvOverrides(t *testing.T) {
	LoadDefault()
	t.Setenv("TENANTGATE_NEO4J_ENABLED", "true")
	t.Setenv("TENANTGATE_AUTH_TRUST_UPSTREAM_AUTHORIZER", "true")
	t.Setenv("TENANTGATE_HTTP_ALLOWED_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("TENANTGATE_COMPLETION_TIMEOUT", "5s")
	t.Setenv("TENANTGATE_DB_PORT", "not-a-number")

	ApplyEnvOverrides()

	assert.True(t, Neo4j().Enabled)
	assert.True(t, Auth().TrustUpstreamAuthorizer)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, Http().AllowedOrigins)
	assert.Equal(t, 5*time.Second, Completion().Timeout)
	assert.Equal(t, 5432, Postgres().Port, "invalid values are ignored")
}

func TestPostgresDSN(t *testing.T) {
	c := postgresConfig{User: "u", Password: "p@ss", Host: "db", Port: 5432, Database: "tg"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/tg?sslmode=disable", c.DSN())
}
