package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return FromClient(rdb), mr
}

func TestLockManagerExclusive(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "account:a1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:account:a1"))

	_, err = lm.Acquire(ctx, "account:a1", 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// Other accounts are independent.
	other, err := lm.Acquire(ctx, "account:a2", 10*time.Second)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists("lock:account:a1"))

	again, err := lm.Acquire(ctx, "account:a1", 10*time.Second)
	require.NoError(t, err)
	again()
}

func TestLockManagerExpiredHolderCannotUnlock(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "account:a1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	current, err := lm.Acquire(ctx, "account:a1", 10*time.Second)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lock:account:a1"))
	_, err = lm.Acquire(ctx, "account:a1", 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	current()
	assert.False(t, mr.Exists("lock:account:a1"))
}

func TestDepthCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	dc := NewDepthCache(c, 30*time.Second)
	ctx := context.Background()

	_, err := dc.GetSnapshot(ctx, "tok-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	d := decimal.RequireFromString
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	snap, err := domain.NewDepthSnapshot("tok-1",
		[]domain.DepthLevel{
			{Price: d("0.55"), Size: d("100")},
			{Price: d("0.54"), Size: d("0")},
			{Price: d("0.5"), Size: d("12.345")},
		},
		[]domain.DepthLevel{
			{Price: d("0.57"), Size: d("12.5")},
			{Price: d("0.6"), Size: d("0")},
			{Price: d("0.99"), Size: d("2500")},
		},
		ts,
	)
	require.NoError(t, err)
	require.NoError(t, dc.SetSnapshot(ctx, snap))

	got, err := dc.GetSnapshot(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.InstrumentID)
	assert.True(t, ts.Equal(got.Timestamp))
	assertLevels(t, snap.Bids, got.Bids)
	assertLevels(t, snap.Asks, got.Asks)

	// A new snapshot replaces every level of the old one.
	next, err := domain.NewDepthSnapshot("tok-1",
		[]domain.DepthLevel{{Price: d("0.4"), Size: d("1")}},
		nil,
		ts.Add(time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, dc.SetSnapshot(ctx, next))

	got, err = dc.GetSnapshot(ctx, "tok-1")
	require.NoError(t, err)
	assertLevels(t, next.Bids, got.Bids)
	assert.Empty(t, got.Asks)
}

func TestDepthCacheExpires(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	dc := NewDepthCache(c, 5*time.Second)
	ctx := context.Background()

	snap, err := domain.NewDepthSnapshot("tok-1",
		[]domain.DepthLevel{{Price: decimal.RequireFromString("0.5"), Size: decimal.NewFromInt(10)}},
		nil,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.NoError(t, dc.SetSnapshot(ctx, snap))

	mr.FastForward(6 * time.Second)
	_, err = dc.GetSnapshot(ctx, "tok-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func assertLevels(t *testing.T, want, got []domain.DepthLevel) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Truef(t, want[i].Price.Equal(got[i].Price), "level %d price: want %s, got %s", i, want[i].Price, got[i].Price)
		assert.Truef(t, want[i].Size.Equal(got[i].Size), "level %d size: want %s, got %s", i, want[i].Size, got[i].Size)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "quote:trader-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := rl.Allow(ctx, "quote:trader-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Keys do not share a window.
	ok, err = rl.Allow(ctx, "quote:trader-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Millisecond)
	ok, err = rl.Allow(ctx, "quote:trader-1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
