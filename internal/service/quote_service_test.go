package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

type memDepthCache struct {
	mu    sync.Mutex
	snaps map[string]domain.DepthSnapshot
	err   error
}

func (c *memDepthCache) SetSnapshot(_ context.Context, snap domain.DepthSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snaps == nil {
		c.snaps = map[string]domain.DepthSnapshot{}
	}
	c.snaps[snap.InstrumentID] = snap
	return nil
}

func (c *memDepthCache) GetSnapshot(_ context.Context, id string) (domain.DepthSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.DepthSnapshot{}, c.err
	}
	snap, ok := c.snaps[id]
	if !ok {
		return domain.DepthSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type stubSource struct {
	snap  domain.DepthSnapshot
	err   error
	calls int
}

func (s *stubSource) GetBook(context.Context, string) (domain.DepthSnapshot, error) {
	s.calls++
	return s.snap, s.err
}

type stubMarkets struct {
	info domain.MarketInfo
	err  error
}

func (s stubMarkets) MarketByInstrument(context.Context, string) (domain.MarketInfo, error) {
	return s.info, s.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func testBook(t *testing.T, ts time.Time) domain.DepthSnapshot {
	t.Helper()
	snap, err := domain.NewDepthSnapshot("tok-1",
		[]domain.DepthLevel{{Price: dec("0.50"), Size: dec("100")}, {Price: dec("0.48"), Size: dec("200")}},
		[]domain.DepthLevel{{Price: dec("0.52"), Size: dec("100")}, {Price: dec("0.55"), Size: dec("100")}},
		ts,
	)
	require.NoError(t, err)
	return snap
}

func newQuoteService(m *memLedger, cache domain.DepthCache, src DepthSource, markets MarketSource, limiter domain.RateLimiter, cfg QuoteConfig) *QuoteService {
	var accounts domain.AccountStore
	if m != nil {
		accounts = m.ledger().Accounts
	}
	svc := NewQuoteService(accounts, cache, src, markets, limiter, risk.DefaultRules(), cfg, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func defaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		MaxBookAge:           5 * time.Second,
		MaxSlippage:          dec("0.01"),
		MaxLiquidityConsumed: dec("0.5"),
		RateLimit:            10,
		RateWindow:           time.Second,
		MinMarketVolume:      dec("500000"),
	}
}

func TestQuoteFetchesAndCachesDepth(t *testing.T) {
	t.Parallel()

	cache := &memDepthCache{}
	src := &stubSource{snap: testBook(t, testNow)}
	svc := newQuoteService(nil, cache, src, nil, nil, defaultQuoteConfig())

	q, err := svc.Quote(context.Background(), QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, DepthFromVenue, q.DepthFrom)
	assert.True(t, q.Estimate.AvgPrice.Equal(dec("0.53")))
	assert.Contains(t, q.Warnings, WarnHighSlippage)
	assert.Contains(t, q.Warnings, WarnThinLiquidity)
	assert.Nil(t, q.Drawdown)

	q, err = svc.Quote(context.Background(), QuoteRequest{InstrumentID: "tok-1", Side: domain.SideSell, Quantity: dec("50")})
	require.NoError(t, err)
	assert.Equal(t, DepthFromCache, q.DepthFrom)
	assert.Empty(t, q.Warnings)
	assert.Equal(t, 1, src.calls)
}

func TestQuoteRefetchesStaleDepth(t *testing.T) {
	t.Parallel()

	cache := &memDepthCache{}
	require.NoError(t, cache.SetSnapshot(context.Background(), testBook(t, testNow.Add(-time.Minute))))
	src := &stubSource{snap: testBook(t, testNow)}
	svc := newQuoteService(nil, cache, src, nil, nil, defaultQuoteConfig())

	snap, from, err := svc.Depth(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, DepthFromVenue, from)
	assert.Equal(t, testNow, snap.Timestamp)
	assert.Equal(t, 1, src.calls)
}

func TestQuoteCacheErrorFallsBackToVenue(t *testing.T) {
	t.Parallel()

	cache := &memDepthCache{err: errors.New("redis down")}
	src := &stubSource{snap: testBook(t, testNow)}
	svc := newQuoteService(nil, cache, src, nil, nil, defaultQuoteConfig())

	_, from, err := svc.Depth(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, DepthFromVenue, from)
}

func TestQuoteRejections(t *testing.T) {
	t.Parallel()

	m := newMemLedger()
	acct := seedAccount(t, m, domain.StatusBreached)
	acct.ID = "breached"
	m.put(acct)

	src := &stubSource{snap: testBook(t, testNow)}

	tests := []struct {
		name    string
		svc     *QuoteService
		req     QuoteRequest
		wantErr error
	}{
		{
			name:    "missing instrument",
			svc:     newQuoteService(nil, nil, src, nil, nil, defaultQuoteConfig()),
			req:     QuoteRequest{Side: domain.SideBuy, Quantity: dec("1")},
			wantErr: domain.ErrInvalidQuote,
		},
		{
			name:    "bad side",
			svc:     newQuoteService(nil, nil, src, nil, nil, defaultQuoteConfig()),
			req:     QuoteRequest{InstrumentID: "tok-1", Side: "hold", Quantity: dec("1")},
			wantErr: domain.ErrInvalidQuote,
		},
		{
			name:    "zero quantity",
			svc:     newQuoteService(nil, nil, src, nil, nil, defaultQuoteConfig()),
			req:     QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("0")},
			wantErr: domain.ErrInvalidQuote,
		},
		{
			name:    "breached account",
			svc:     newQuoteService(m, nil, src, nil, nil, defaultQuoteConfig()),
			req:     QuoteRequest{AccountID: "breached", InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")},
			wantErr: domain.ErrAccountBreached,
		},
		{
			name:    "rate limited",
			svc:     newQuoteService(nil, nil, src, nil, denyLimiter{}, defaultQuoteConfig()),
			req:     QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")},
			wantErr: domain.ErrRateLimited,
		},
		{
			name:    "venue failure",
			svc:     newQuoteService(nil, nil, &stubSource{err: domain.ErrNotFound}, nil, nil, defaultQuoteConfig()),
			req:     QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")},
			wantErr: domain.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.svc.Quote(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestQuoteMarketQualification(t *testing.T) {
	t.Parallel()

	cfg := defaultQuoteConfig()
	cfg.RequireQualifiedMarket = true
	src := &stubSource{snap: testBook(t, testNow)}

	thin := stubMarkets{info: domain.MarketInfo{Active: true, Volume: dec("1000")}}
	_, err := newQuoteService(nil, nil, src, thin, nil, cfg).
		Quote(context.Background(), QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrMarketNotQualified)

	unknown := stubMarkets{err: domain.ErrNotFound}
	_, err = newQuoteService(nil, nil, src, unknown, nil, cfg).
		Quote(context.Background(), QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrMarketNotQualified)

	deep := stubMarkets{info: domain.MarketInfo{MarketID: "m1", Active: true, Volume: dec("900000")}}
	q, err := newQuoteService(nil, nil, src, deep, nil, cfg).
		Quote(context.Background(), QuoteRequest{InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("1")})
	require.NoError(t, err)
	require.NotNil(t, q.Market)
	assert.Equal(t, "m1", q.Market.MarketID)
}

func TestQuoteIncludesAccountDrawdown(t *testing.T) {
	t.Parallel()

	m := newMemLedger()
	acct := seedAccount(t, m, domain.StatusStage1InProgress)
	acct.CurrentEquity = dec("9300")
	m.put(acct)

	svc := newQuoteService(m, nil, &stubSource{snap: testBook(t, testNow)}, nil, nil, defaultQuoteConfig())
	q, err := svc.Quote(context.Background(), QuoteRequest{AccountID: "acct-1", InstrumentID: "tok-1", Side: domain.SideBuy, Quantity: dec("10")})
	require.NoError(t, err)
	require.NotNil(t, q.Drawdown)
	assert.Equal(t, domain.DrawdownDanger, q.Drawdown.Level)
	assert.Contains(t, q.Warnings, WarnDrawdownProximity)
}
