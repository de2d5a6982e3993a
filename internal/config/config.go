// Package config defines the top-level configuration for the polyprop
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYPROP_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Rules      RulesConfig      `toml:"rules"`
	Quote      QuoteConfig      `toml:"quote"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters plus the settings of the
// structures built on it.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	LockTTL      duration `toml:"lock_ttl"`
	LockWait     duration `toml:"lock_wait"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	ClobHost  string   `toml:"clob_host"`
	GammaHost string   `toml:"gamma_host"`
	Timeout   duration `toml:"timeout"`
}

// RulesConfig holds the evaluation parameters. Fractions are written as
// decimals, e.g. 0.08 for an 8% drawdown.
type RulesConfig struct {
	DrawdownLimit       float64  `toml:"drawdown_limit"`
	DrawdownShieldLimit float64  `toml:"drawdown_shield_limit"`
	ProfitTargetStage1  float64  `toml:"profit_target_stage1"`
	ProfitTargetStage2  float64  `toml:"profit_target_stage2"`
	ConsistencyLimit    float64  `toml:"consistency_limit"`
	MinContracts        int      `toml:"min_contracts"`
	TraderSplit         float64  `toml:"trader_split"`
	MinPayout           float64  `toml:"min_payout"`
	PayoutCooldown      duration `toml:"payout_cooldown"`
	WarningAt           float64  `toml:"warning_at"`
	DangerAt            float64  `toml:"danger_at"`
}

// QuoteConfig holds Liquidity Guard request-path parameters.
type QuoteConfig struct {
	MaxBookAge             duration `toml:"max_book_age"`
	MaxSlippage            float64  `toml:"max_slippage"`
	MaxLiquidityConsumed   float64  `toml:"max_liquidity_consumed"`
	RateLimit              int      `toml:"rate_limit"`
	RateWindow             duration `toml:"rate_window"`
	RequireQualifiedMarket bool     `toml:"require_qualified_market"`
	MinMarketVolume        float64  `toml:"min_market_volume"`
}

// ArchiveConfig holds ledger export parameters.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKeyHashes are bcrypt hashes of accepted API keys. Empty disables auth.
	APIKeyHashes []string `toml:"api_key_hashes"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyprop",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 100_000,
			LockTTL:      duration{10 * time.Second},
			LockWait:     duration{5 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyprop-archive",
			ForcePathStyle: true,
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			Timeout:   duration{10 * time.Second},
		},
		Rules: RulesConfig{
			DrawdownLimit:       0.08,
			DrawdownShieldLimit: 0.10,
			ProfitTargetStage1:  0.15,
			ProfitTargetStage2:  0.10,
			ConsistencyLimit:    0.40,
			MinContracts:        10,
			TraderSplit:         0.80,
			MinPayout:           100,
			PayoutCooldown:      duration{14 * 24 * time.Hour},
			WarningAt:           0.5,
			DangerAt:            0.8,
		},
		Quote: QuoteConfig{
			MaxBookAge:           duration{2 * time.Second},
			MaxSlippage:          0.02,
			MaxLiquidityConsumed: 0.5,
			RateLimit:            30,
			RateWindow:           duration{time.Second},
			MinMarketVolume:      500_000,
		},
		Archive: ArchiveConfig{
			Enabled:   true,
			Interval:  duration{24 * time.Hour},
			Retention: duration{90 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"account_breached", "stage_passed", "payout_requested"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.LockTTL.Duration <= 0 {
		errs = append(errs, "redis: lock_ttl must be > 0")
	}
	if c.Redis.LockWait.Duration < 0 {
		errs = append(errs, "redis: lock_wait must be >= 0")
	}

	// S3 is only needed when the archiver runs.
	if c.Archive.Enabled && (mode == "archive" || mode == "full") {
		if c.S3.Endpoint == "" && c.S3.Region == "" {
			errs = append(errs, "s3: endpoint or region must be set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Archive.Retention.Duration < 0 {
			errs = append(errs, "archive: retention must be >= 0")
		}
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Quote.RequireQualifiedMarket && c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host is required when quote.require_qualified_market is set")
	}

	errs = append(errs, c.Rules.validate()...)

	// Quote
	if c.Quote.MaxBookAge.Duration < 0 {
		errs = append(errs, "quote: max_book_age must be >= 0")
	}
	if c.Quote.MaxSlippage < 0 {
		errs = append(errs, "quote: max_slippage must be >= 0")
	}
	if c.Quote.MaxLiquidityConsumed < 0 || c.Quote.MaxLiquidityConsumed > 1 {
		errs = append(errs, "quote: max_liquidity_consumed must be within [0, 1]")
	}
	if c.Quote.RateLimit > 0 && c.Quote.RateWindow.Duration <= 0 {
		errs = append(errs, "quote: rate_window must be > 0 when rate_limit is set")
	}

	// Server
	if c.Server.Enabled && mode != "archive" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		for i, h := range c.Server.APIKeyHashes {
			if !strings.HasPrefix(h, "$2") {
				errs = append(errs, fmt.Sprintf("server: api_key_hashes[%d] is not a bcrypt hash", i))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (r RulesConfig) validate() []string {
	var errs []string
	fraction := func(name string, v float64) {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("rules: %s must be within (0, 1], got %g", name, v))
		}
	}
	fraction("drawdown_limit", r.DrawdownLimit)
	fraction("drawdown_shield_limit", r.DrawdownShieldLimit)
	fraction("profit_target_stage1", r.ProfitTargetStage1)
	fraction("profit_target_stage2", r.ProfitTargetStage2)
	fraction("consistency_limit", r.ConsistencyLimit)
	fraction("trader_split", r.TraderSplit)
	fraction("warning_at", r.WarningAt)
	fraction("danger_at", r.DangerAt)
	if r.DrawdownLimit >= 1 || r.DrawdownShieldLimit >= 1 {
		errs = append(errs, "rules: drawdown limits must be below 1")
	}
	if r.WarningAt > r.DangerAt {
		errs = append(errs, "rules: warning_at must not exceed danger_at")
	}
	if r.MinContracts < 0 {
		errs = append(errs, "rules: min_contracts must be >= 0")
	}
	if r.MinPayout < 0 {
		errs = append(errs, "rules: min_payout must be >= 0")
	}
	if r.PayoutCooldown.Duration < 0 {
		errs = append(errs, "rules: payout_cooldown must be >= 0")
	}
	return errs
}
