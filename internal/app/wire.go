package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/polyprop/internal/blob/s3"
	"github.com/alanyoungcy/polyprop/internal/cache/redis"
	"github.com/alanyoungcy/polyprop/internal/config"
	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/notify"
	"github.com/alanyoungcy/polyprop/internal/platform/polymarket"
	"github.com/alanyoungcy/polyprop/internal/risk"
	"github.com/alanyoungcy/polyprop/internal/service"
	"github.com/alanyoungcy/polyprop/internal/server/handler"
	"github.com/alanyoungcy/polyprop/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Rules risk.Rules

	// Stores
	Ledger       service.Ledger
	CursorStore  domain.ArchiveCursorStore
	AccountStore domain.AccountStore

	// Caches
	DepthCache  domain.DepthCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil when archiving is disabled.
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Venue
	Clob  *polymarket.ClobClient
	Gamma *polymarket.GammaClient

	// Notifier is nil when no sender is configured.
	Notifier service.Notifier

	// Probes for the readiness endpoint.
	Probes map[string]handler.Pinger
}

// needsS3 returns true when the mode exports ledger history.
func needsS3(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Mode, "archive") || cfg.Archive.Enabled
}

// RulesFromConfig converts the configured rule fractions to decimals and
// validates them.
func RulesFromConfig(rc config.RulesConfig) (risk.Rules, error) {
	rules := risk.Rules{
		DrawdownLimit:       decimal.NewFromFloat(rc.DrawdownLimit),
		DrawdownShieldLimit: decimal.NewFromFloat(rc.DrawdownShieldLimit),
		ProfitTargetStage1:  decimal.NewFromFloat(rc.ProfitTargetStage1),
		ProfitTargetStage2:  decimal.NewFromFloat(rc.ProfitTargetStage2),
		ConsistencyLimit:    decimal.NewFromFloat(rc.ConsistencyLimit),
		MinContracts:        rc.MinContracts,
		TraderSplit:         decimal.NewFromFloat(rc.TraderSplit),
		MinPayout:           decimal.NewFromFloat(rc.MinPayout),
		PayoutCooldown:      rc.PayoutCooldown.Duration,
		WarningAt:           decimal.NewFromFloat(rc.WarningAt),
		DangerAt:            decimal.NewFromFloat(rc.DangerAt),
	}
	if err := rules.Validate(); err != nil {
		return risk.Rules{}, err
	}
	return rules, nil
}

// QuoteConfigFromConfig converts the Liquidity Guard settings.
func QuoteConfigFromConfig(qc config.QuoteConfig) service.QuoteConfig {
	return service.QuoteConfig{
		MaxBookAge:             qc.MaxBookAge.Duration,
		MaxSlippage:            decimal.NewFromFloat(qc.MaxSlippage),
		MaxLiquidityConsumed:   decimal.NewFromFloat(qc.MaxLiquidityConsumed),
		RateLimit:              qc.RateLimit,
		RateWindow:             qc.RateWindow.Duration,
		RequireQualifiedMarket: qc.RequireQualifiedMarket,
		MinMarketVolume:        decimal.NewFromFloat(qc.MinMarketVolume),
	}
}

// OpenPostgres connects to Postgres and applies migrations when enabled.
func OpenPostgres(ctx context.Context, pc config.PostgresConfig) (*postgres.Client, error) {
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      pc.DSN,
		Host:     pc.Host,
		Port:     pc.Port,
		Database: pc.Database,
		User:     pc.User,
		Password: pc.Password,
		SSLMode:  pc.SSLMode,
		MaxConns: pc.PoolMaxConns,
		MinConns: pc.PoolMinConns,
	})
	if err != nil {
		return nil, err
	}
	if pc.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			pgClient.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return pgClient, nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rules, err := RulesFromConfig(cfg.Rules)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps := &Dependencies{Rules: rules, Probes: map[string]handler.Pinger{}}

	// --- PostgreSQL ---
	pgClient, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Probes["postgres"] = pgClient

	pool := pgClient.Pool()
	accounts := postgres.NewAccountStore(pool)
	deps.AccountStore = accounts
	deps.Ledger = service.Ledger{
		Accounts:   accounts,
		Trades:     postgres.NewTradeStore(pool),
		Snapshots:  postgres.NewSnapshotStore(pool),
		Violations: postgres.NewViolationStore(pool),
		Payouts:    postgres.NewPayoutStore(pool),
		Audit:      postgres.NewAuditStore(pool),
	}
	deps.CursorStore = postgres.NewArchiveCursorStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Probes["redis"] = redisClient

	depthTTL := max(30*time.Second, 10*cfg.Quote.MaxBookAge.Duration)
	deps.DepthCache = redis.NewDepthCache(redisClient, depthTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)

	// --- S3 blob storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Probes["s3"] = handler.PingFunc(s3Client.Health)

		writer := s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.Archiver = s3blob.NewArchiver(writer, reader, deps.Ledger.Trades, deps.Ledger.Snapshots, deps.Ledger.Audit)
	}

	// --- Venue ---
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, cfg.Polymarket.Timeout.Duration)
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, cfg.Polymarket.Timeout.Duration)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
