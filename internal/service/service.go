// Package service implements the request paths of the evaluation service:
// Liquidity Guard quotes, trade settlement, stage transitions, payouts and
// ledger archival. Services serialise per-account writes through a
// distributed lock and publish account events on the signal bus.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
	"github.com/alanyoungcy/polyprop/internal/notify"
)

// Notifier delivers operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// Ledger groups the stores the account and payout services read and write.
type Ledger struct {
	Accounts   domain.AccountStore
	Trades     domain.TradeStore
	Snapshots  domain.SnapshotStore
	Violations domain.ViolationStore
	Payouts    domain.PayoutStore
	Audit      domain.AuditStore
}

// LockConfig controls the per-account lock.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

const lockRetryInterval = 25 * time.Millisecond

func accountLockKey(id string) string {
	return "account:" + id
}

// lockAccount takes the per-account lock, retrying while it is held until
// cfg.Wait elapses or ctx is done.
func lockAccount(ctx context.Context, locks domain.LockManager, id string, cfg LockConfig) (func(), error) {
	start := time.Now()
	defer func() { metrics.LockWait.Observe(time.Since(start).Seconds()) }()

	wait := cfg.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		unlock, err := locks.Acquire(ctx, accountLockKey(id), cfg.TTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock account %s: %w", id, domain.ErrLockHeld)
		case <-time.After(lockRetryInterval):
		}
	}
}

// publisher fans account events out to the signal bus. A nil bus drops
// events.
type publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

func (p publisher) publish(ctx context.Context, evt domain.AccountEvent) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.WarnContext(ctx, "marshal event failed",
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, domain.AccountChannel(evt.AccountID), payload); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", evt.Type),
			slog.String("account_id", evt.AccountID),
			slog.String("error", err.Error()),
		)
	}
	if evt.Type != domain.EventTradeSettled {
		return
	}
	if err := p.bus.StreamAppend(ctx, domain.SettlementStream, payload); err != nil {
		p.logger.WarnContext(ctx, "stream append failed",
			slog.String("account_id", evt.AccountID),
			slog.String("error", err.Error()),
		)
	}
}

func auditLog(ctx context.Context, audit domain.AuditStore, logger *slog.Logger, event string, detail map[string]any) {
	if err := audit.Log(ctx, event, detail); err != nil {
		logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func sendAlert(ctx context.Context, n Notifier, logger *slog.Logger, a notify.Alert) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, a); err != nil {
		logger.WarnContext(ctx, "notify failed",
			slog.String("event", a.Event),
			slog.String("account_id", a.AccountID),
			slog.String("error", err.Error()),
		)
	}
}
