package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
	"github.com/alanyoungcy/polyprop/internal/risk"
	"github.com/shopspring/decimal"
)

// DepthSource fetches a live book from the venue.
type DepthSource interface {
	GetBook(ctx context.Context, instrumentID string) (domain.DepthSnapshot, error)
}

// MarketSource resolves venue market metadata for an instrument.
type MarketSource interface {
	MarketByInstrument(ctx context.Context, instrumentID string) (domain.MarketInfo, error)
}

// QuoteConfig holds Liquidity Guard request-path limits.
type QuoteConfig struct {
	MaxBookAge             time.Duration
	MaxSlippage            decimal.Decimal
	MaxLiquidityConsumed   decimal.Decimal
	RateLimit              int
	RateWindow             time.Duration
	RequireQualifiedMarket bool
	MinMarketVolume        decimal.Decimal
}

// QuoteRequest asks how an order of Quantity would fill right now.
type QuoteRequest struct {
	AccountID    string          `json:"account_id,omitempty"`
	InstrumentID string          `json:"instrument_id"`
	Side         domain.Side     `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// Quote warnings.
const (
	WarnHighSlippage      = "HIGH_SLIPPAGE"
	WarnThinLiquidity     = "THIN_LIQUIDITY"
	WarnPartialFill       = "PARTIAL_FILL"
	WarnNoLiquidity       = "NO_LIQUIDITY"
	WarnDrawdownProximity = "DRAWDOWN_PROXIMITY"
)

// Quote is a Liquidity Guard answer.
type Quote struct {
	Estimate  domain.FillEstimate    `json:"estimate"`
	Warnings  []string               `json:"warnings"`
	DepthAt   time.Time              `json:"depth_at"`
	DepthFrom string                 `json:"depth_from"`
	Drawdown  *domain.DrawdownStatus `json:"drawdown,omitempty"`
	Market    *domain.MarketInfo     `json:"market,omitempty"`
}

// Depth sources reported in Quote.DepthFrom.
const (
	DepthFromCache = "cache"
	DepthFromVenue = "venue"
)

// QuoteService estimates fills against current book depth.
type QuoteService struct {
	accounts domain.AccountStore
	cache    domain.DepthCache
	source   DepthSource
	markets  MarketSource
	limiter  domain.RateLimiter
	rules    risk.Rules
	cfg      QuoteConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewQuoteService creates a QuoteService. accounts, cache, markets and
// limiter may be nil to disable the corresponding step.
func NewQuoteService(
	accounts domain.AccountStore,
	cache domain.DepthCache,
	source DepthSource,
	markets MarketSource,
	limiter domain.RateLimiter,
	rules risk.Rules,
	cfg QuoteConfig,
	logger *slog.Logger,
) *QuoteService {
	return &QuoteService{
		accounts: accounts,
		cache:    cache,
		source:   source,
		markets:  markets,
		limiter:  limiter,
		rules:    rules,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "quote_service")),
	}
}

func validateQuote(req QuoteRequest) error {
	switch {
	case strings.TrimSpace(req.InstrumentID) == "":
		return fmt.Errorf("instrument id required: %w", domain.ErrInvalidQuote)
	case !req.Side.Valid():
		return fmt.Errorf("side %q: %w", req.Side, domain.ErrInvalidQuote)
	case !req.Quantity.IsPositive():
		return fmt.Errorf("quantity %s must be > 0: %w", req.Quantity, domain.ErrInvalidQuote)
	}
	return nil
}

// Quote runs the Liquidity Guard for req.
func (s *QuoteService) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if err := validateQuote(req); err != nil {
		metrics.QuotesTotal.WithLabelValues("invalid").Inc()
		return Quote{}, fmt.Errorf("quote_service: %w", err)
	}

	var q Quote
	if req.AccountID != "" && s.accounts != nil {
		acct, err := s.accounts.Get(ctx, req.AccountID)
		if err != nil {
			return Quote{}, fmt.Errorf("quote_service: account %s: %w", req.AccountID, err)
		}
		if acct.Status == domain.StatusBreached {
			metrics.QuotesTotal.WithLabelValues("breached").Inc()
			return Quote{}, fmt.Errorf("quote_service: %w", risk.NewBreachedAccountError(acct))
		}
		dd := risk.DrawdownWithRules(acct, s.rules)
		q.Drawdown = &dd
	}

	if err := s.allow(ctx, req); err != nil {
		metrics.QuotesTotal.WithLabelValues("rate_limited").Inc()
		return Quote{}, err
	}

	if s.cfg.RequireQualifiedMarket && s.markets != nil {
		info, err := s.qualify(ctx, req.InstrumentID)
		if err != nil {
			metrics.QuotesTotal.WithLabelValues("not_qualified").Inc()
			return Quote{}, err
		}
		q.Market = &info
	}

	snap, from, err := s.Depth(ctx, req.InstrumentID)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("depth_error").Inc()
		return Quote{}, err
	}
	q.DepthAt = snap.Timestamp
	q.DepthFrom = from

	est, err := risk.EstimateFill(snap, req.Side, req.Quantity)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("invalid").Inc()
		return Quote{}, fmt.Errorf("quote_service: %w", err)
	}
	q.Estimate = est
	q.Warnings = s.warnings(est, q.Drawdown)

	outcome := "full"
	switch {
	case est.NoLiquidity:
		outcome = "no_liquidity"
	case est.IsPartial:
		outcome = "partial"
	}
	metrics.QuotesTotal.WithLabelValues(outcome).Inc()
	if !est.NoLiquidity {
		f, _ := est.SlippageFraction.Float64()
		metrics.QuoteSlippage.Observe(f)
	}

	s.logger.DebugContext(ctx, "quote",
		slog.String("instrument", req.InstrumentID),
		slog.String("side", string(req.Side)),
		slog.String("quantity", req.Quantity.String()),
		slog.String("avg_price", est.AvgPrice.String()),
		slog.String("outcome", outcome),
	)
	return q, nil
}

func (s *QuoteService) allow(ctx context.Context, req QuoteRequest) error {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return nil
	}
	key := "quote:" + req.InstrumentID
	if req.AccountID != "" {
		key = "quote:" + req.AccountID + ":" + req.InstrumentID
	}
	ok, err := s.limiter.Allow(ctx, key, s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		// Limiter outages fail open.
		s.logger.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return fmt.Errorf("quote_service: %s: %w", key, domain.ErrRateLimited)
	}
	return nil
}

func (s *QuoteService) qualify(ctx context.Context, instrumentID string) (domain.MarketInfo, error) {
	info, err := s.markets.MarketByInstrument(ctx, instrumentID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.MarketInfo{}, fmt.Errorf("quote_service: %s unknown: %w", instrumentID, domain.ErrMarketNotQualified)
	}
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("quote_service: market lookup %s: %w", instrumentID, err)
	}
	if !info.Qualified(s.cfg.MinMarketVolume) {
		return info, fmt.Errorf("quote_service: %s volume %s below %s or market closed: %w",
			instrumentID, info.Volume, s.cfg.MinMarketVolume, domain.ErrMarketNotQualified)
	}
	return info, nil
}

// Depth returns a snapshot no older than the configured max age, reading
// through the cache to the venue. It reports where the snapshot came from.
func (s *QuoteService) Depth(ctx context.Context, instrumentID string) (domain.DepthSnapshot, string, error) {
	if s.cache != nil {
		start := time.Now()
		snap, err := s.cache.GetSnapshot(ctx, instrumentID)
		metrics.DepthFetchLatency.WithLabelValues(DepthFromCache).Observe(time.Since(start).Seconds())
		switch {
		case err == nil && snap.Age(s.now()) <= s.cfg.MaxBookAge:
			return snap, DepthFromCache, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "depth cache read failed",
				slog.String("instrument", instrumentID),
				slog.String("error", err.Error()),
			)
		}
	}

	start := time.Now()
	snap, err := s.source.GetBook(ctx, instrumentID)
	metrics.DepthFetchLatency.WithLabelValues(DepthFromVenue).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.DepthSnapshot{}, "", fmt.Errorf("quote_service: depth %s: %w", instrumentID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "depth cache write failed",
				slog.String("instrument", instrumentID),
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, DepthFromVenue, nil
}

func (s *QuoteService) warnings(est domain.FillEstimate, dd *domain.DrawdownStatus) []string {
	out := []string{}
	if est.NoLiquidity {
		return append(out, WarnNoLiquidity)
	}
	if est.IsPartial {
		out = append(out, WarnPartialFill)
	}
	if s.cfg.MaxSlippage.IsPositive() && est.SlippageFraction.GreaterThan(s.cfg.MaxSlippage) {
		out = append(out, WarnHighSlippage)
	}
	if s.cfg.MaxLiquidityConsumed.IsPositive() && est.LiquidityConsumedFraction.GreaterThan(s.cfg.MaxLiquidityConsumed) {
		out = append(out, WarnThinLiquidity)
	}
	if dd != nil && dd.Level == domain.DrawdownDanger {
		out = append(out, WarnDrawdownProximity)
	}
	return out
}
