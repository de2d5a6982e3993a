package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

//go:embed scripts/depth_replace.lua
var depthReplaceLua string

// DepthCache implements domain.DepthCache using Redis sorted sets and
// hashes for each instrument's book. Prices are stored as canonical decimal
// strings so levels round-trip exactly.
//
// Key schema (hash-tagged so all keys share a slot):
//
//	depth:{id}:bids      - sorted set of bid prices (score = price)
//	depth:{id}:asks      - sorted set of ask prices (score = price)
//	depth:{id}:bid:size  - hash mapping price -> size for bids
//	depth:{id}:ask:size  - hash mapping price -> size for asks
//	depth:{id}:meta      - hash with "ts" (snapshot time, unix nanos)
type DepthCache struct {
	rdb          *redis.Client
	ttl          time.Duration
	depthReplace *redis.Script
}

// NewDepthCache creates a DepthCache whose entries expire after ttl. A zero
// ttl keeps entries until replaced.
func NewDepthCache(c *Client, ttl time.Duration) *DepthCache {
	return &DepthCache{
		rdb:          c.Underlying(),
		ttl:          ttl,
		depthReplace: redis.NewScript(depthReplaceLua),
	}
}

func depthKeys(id string) []string {
	base := "depth:{" + id + "}"
	return []string{
		base + ":bids",
		base + ":asks",
		base + ":bid:size",
		base + ":ask:size",
		base + ":meta",
	}
}

// depthArgs flattens a snapshot into the ARGV layout of depth_replace.lua.
func depthArgs(snap domain.DepthSnapshot, ttl time.Duration) []any {
	args := make([]any, 0, 3+2*(len(snap.Bids)+len(snap.Asks)))
	args = append(args, snap.Timestamp.UnixNano(), ttl.Milliseconds(), len(snap.Bids))
	for _, lvl := range snap.Bids {
		args = append(args, lvl.Price.String(), lvl.Size.String())
	}
	for _, lvl := range snap.Asks {
		args = append(args, lvl.Price.String(), lvl.Size.String())
	}
	return args
}

// SetSnapshot atomically replaces the cached book for snap.InstrumentID.
func (dc *DepthCache) SetSnapshot(ctx context.Context, snap domain.DepthSnapshot) error {
	keys := depthKeys(snap.InstrumentID)
	if err := dc.depthReplace.Run(ctx, dc.rdb, keys, depthArgs(snap, dc.ttl)...).Err(); err != nil {
		return fmt.Errorf("redis: set depth snapshot %s: %w", snap.InstrumentID, err)
	}
	return nil
}

// GetSnapshot reconstructs the cached book for an instrument. It returns
// domain.ErrNotFound if nothing is cached.
func (dc *DepthCache) GetSnapshot(ctx context.Context, instrumentID string) (domain.DepthSnapshot, error) {
	keys := depthKeys(instrumentID)

	pipe := dc.rdb.Pipeline()
	bidsCmd := pipe.ZRevRange(ctx, keys[0], 0, -1)
	asksCmd := pipe.ZRange(ctx, keys[1], 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, keys[2])
	askSizeCmd := pipe.HGetAll(ctx, keys[3])
	metaCmd := pipe.HGetAll(ctx, keys[4])

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: get depth snapshot %s: %w", instrumentID, err)
	}

	meta, _ := metaCmd.Result()
	tsStr, ok := meta["ts"]
	if !ok {
		return domain.DepthSnapshot{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: depth snapshot %s: bad ts %q", instrumentID, tsStr)
	}

	bids, err := decodeLevels(bidsCmd.Val(), bidSizeCmd.Val())
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: depth snapshot %s bids: %w", instrumentID, err)
	}
	asks, err := decodeLevels(asksCmd.Val(), askSizeCmd.Val())
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: depth snapshot %s asks: %w", instrumentID, err)
	}

	snap, err := domain.NewDepthSnapshot(instrumentID, bids, asks, time.Unix(0, tsNano).UTC())
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: depth snapshot %s: %w", instrumentID, err)
	}
	return snap, nil
}

// decodeLevels pairs ordered price members with their sizes.
func decodeLevels(prices []string, sizes map[string]string) ([]domain.DepthLevel, error) {
	levels := make([]domain.DepthLevel, 0, len(prices))
	for _, p := range prices {
		price, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", p, err)
		}
		size := decimal.Zero
		if s, ok := sizes[p]; ok {
			if size, err = decimal.NewFromString(s); err != nil {
				return nil, fmt.Errorf("size %q: %w", s, err)
			}
		}
		levels = append(levels, domain.DepthLevel{Price: price, Size: size})
	}
	return levels, nil
}

// Compile-time interface check.
var _ domain.DepthCache = (*DepthCache)(nil)
