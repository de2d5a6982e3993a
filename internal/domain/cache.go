package domain

import (
	"context"
	"time"
)

// DepthCache stores recent depth snapshots per instrument.
type DepthCache interface {
	SetSnapshot(ctx context.Context, snap DepthSnapshot) error
	GetSnapshot(ctx context.Context, instrumentID string) (DepthSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// AccountChannel is the pub/sub channel carrying one account's events.
func AccountChannel(accountID string) string {
	return "ch:account:" + accountID
}

// AccountChannelPattern matches every account channel.
const AccountChannelPattern = "ch:account:*"

// SettlementStream is the durable stream of settled trades.
const SettlementStream = "stream:settlements"

// Account event types carried on account channels.
const (
	EventAccountOpened   = "account.opened"
	EventTradeSettled    = "trade.settled"
	EventAccountBreached = "account.breached"
	EventStagePassed     = "stage.passed"
	EventStageStarted    = "stage.started"
	EventPartnerPromoted = "account.partner"
	EventPayoutRequested = "payout.requested"
)

// AccountEvent is the JSON envelope published on account channels and the
// settlement stream.
type AccountEvent struct {
	Type      string    `json:"type"`
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}
