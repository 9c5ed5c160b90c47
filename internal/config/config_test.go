package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "freeze", cfg.Market.ExpirePolicy)
	assert.Equal(t, time.Minute, cfg.Market.SweepInterval.Duration)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 90, cfg.Market.ArchiveRetentionDays)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	cfg.LogLevel = "verbose"
	cfg.Market.ExpirePolicy = "purge"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "expire_policy")
	assert.Contains(t, err.Error(), "port")
}

func TestValidate_S3RequiredOnlyInArchiveMode(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Endpoint = ""
	cfg.S3.Bucket = ""

	// serve mode tolerates missing S3.
	require.NoError(t, cfg.Validate())

	cfg.Mode = "archive"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint")
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestValidate_DisabledServerSkipsServerChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Enabled = false
	cfg.Server.Port = 0
	cfg.Server.RateLimit = 100
	cfg.Server.RateLimitWindow.Duration = 0

	// A headless (sweeper-only) deployment carries no server settings.
	require.NoError(t, cfg.Validate())

	cfg.Server.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "rate_limit_window")
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "sweep"
log_level = "debug"

[market]
expire_policy = "reset"
sweep_interval = "30s"

[server]
port = 9000
rate_limit = 100
rate_limit_window = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sweep", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "reset", cfg.Market.ExpirePolicy)
	assert.Equal(t, 30*time.Second, cfg.Market.SweepInterval.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, time.Minute, cfg.Server.RateLimitWindow.Duration)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "serve"`), 0o600))

	t.Setenv("CASTMARKET_MODE", "archive")
	t.Setenv("CASTMARKET_POSTGRES_PASSWORD", "sekrit")
	t.Setenv("CASTMARKET_MARKET_LOCK_TTL", "10s")
	t.Setenv("CASTMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, "sekrit", cfg.Postgres.Password)
	assert.Equal(t, 10*time.Second, cfg.Market.LockTTL.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
