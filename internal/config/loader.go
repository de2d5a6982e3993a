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
// built-in defaults, applies POLYPROP_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known POLYPROP_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYPROP_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYPROP_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYPROP_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYPROP_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYPROP_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYPROP_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYPROP_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYPROP_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYPROP_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYPROP_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYPROP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYPROP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYPROP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYPROP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYPROP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYPROP_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "POLYPROP_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.LockTTL, "POLYPROP_REDIS_LOCK_TTL")
	setDuration(&cfg.Redis.LockWait, "POLYPROP_REDIS_LOCK_WAIT")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYPROP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYPROP_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYPROP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYPROP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYPROP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYPROP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYPROP_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "POLYPROP_S3_PREFIX")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYPROP_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYPROP_POLYMARKET_GAMMA_HOST")
	setDuration(&cfg.Polymarket.Timeout, "POLYPROP_POLYMARKET_TIMEOUT")

	// ── Rules ──
	setFloat64(&cfg.Rules.DrawdownLimit, "POLYPROP_RULES_DRAWDOWN_LIMIT")
	setFloat64(&cfg.Rules.DrawdownShieldLimit, "POLYPROP_RULES_DRAWDOWN_SHIELD_LIMIT")
	setFloat64(&cfg.Rules.ProfitTargetStage1, "POLYPROP_RULES_PROFIT_TARGET_STAGE1")
	setFloat64(&cfg.Rules.ProfitTargetStage2, "POLYPROP_RULES_PROFIT_TARGET_STAGE2")
	setFloat64(&cfg.Rules.ConsistencyLimit, "POLYPROP_RULES_CONSISTENCY_LIMIT")
	setInt(&cfg.Rules.MinContracts, "POLYPROP_RULES_MIN_CONTRACTS")
	setFloat64(&cfg.Rules.TraderSplit, "POLYPROP_RULES_TRADER_SPLIT")
	setFloat64(&cfg.Rules.MinPayout, "POLYPROP_RULES_MIN_PAYOUT")
	setDuration(&cfg.Rules.PayoutCooldown, "POLYPROP_RULES_PAYOUT_COOLDOWN")
	setFloat64(&cfg.Rules.WarningAt, "POLYPROP_RULES_WARNING_AT")
	setFloat64(&cfg.Rules.DangerAt, "POLYPROP_RULES_DANGER_AT")

	// ── Quote ──
	setDuration(&cfg.Quote.MaxBookAge, "POLYPROP_QUOTE_MAX_BOOK_AGE")
	setFloat64(&cfg.Quote.MaxSlippage, "POLYPROP_QUOTE_MAX_SLIPPAGE")
	setFloat64(&cfg.Quote.MaxLiquidityConsumed, "POLYPROP_QUOTE_MAX_LIQUIDITY_CONSUMED")
	setInt(&cfg.Quote.RateLimit, "POLYPROP_QUOTE_RATE_LIMIT")
	setDuration(&cfg.Quote.RateWindow, "POLYPROP_QUOTE_RATE_WINDOW")
	setBool(&cfg.Quote.RequireQualifiedMarket, "POLYPROP_QUOTE_REQUIRE_QUALIFIED_MARKET")
	setFloat64(&cfg.Quote.MinMarketVolume, "POLYPROP_QUOTE_MIN_MARKET_VOLUME")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYPROP_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "POLYPROP_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "POLYPROP_ARCHIVE_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYPROP_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYPROP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYPROP_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeyHashes, "POLYPROP_SERVER_API_KEY_HASHES")
	setInt(&cfg.Server.RateLimit, "POLYPROP_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "POLYPROP_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYPROP_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYPROP_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYPROP_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYPROP_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYPROP_MODE")
	setStr(&cfg.LogLevel, "POLYPROP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
