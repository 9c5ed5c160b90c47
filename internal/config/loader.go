package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CASTMARKET_* environment variable overrides,
// and returns the final Config. The caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known CASTMARKET_*
// environment variables, letting operators inject secrets at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CASTMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CASTMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CASTMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CASTMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CASTMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CASTMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CASTMARKET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CASTMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CASTMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CASTMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CASTMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CASTMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CASTMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CASTMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CASTMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CASTMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CASTMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CASTMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "CASTMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CASTMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CASTMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CASTMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CASTMARKET_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setStr(&cfg.Market.ExpirePolicy, "CASTMARKET_MARKET_EXPIRE_POLICY")
	setDuration(&cfg.Market.SweepInterval, "CASTMARKET_MARKET_SWEEP_INTERVAL")
	setDuration(&cfg.Market.LockTTL, "CASTMARKET_MARKET_LOCK_TTL")
	setInt(&cfg.Market.LockRetries, "CASTMARKET_MARKET_LOCK_RETRIES")
	setDuration(&cfg.Market.LockRetryDelay, "CASTMARKET_MARKET_LOCK_RETRY_DELAY")
	setInt(&cfg.Market.ArchiveRetentionDays, "CASTMARKET_MARKET_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CASTMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CASTMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CASTMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CASTMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "CASTMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "CASTMARKET_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CASTMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CASTMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CASTMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CASTMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CASTMARKET_MODE")
	setStr(&cfg.LogLevel, "CASTMARKET_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
