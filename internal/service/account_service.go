package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
	"github.com/alanyoungcy/polyprop/internal/notify"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

// OpenRequest purchases a new evaluation account.
type OpenRequest struct {
	TraderID string        `json:"trader_id"`
	Tier     domain.Tier   `json:"tier"`
	Addons   domain.Addons `json:"addons"`
}

// SettleRequest reports one settled trade for an account.
type SettleRequest struct {
	AccountID          string          `json:"-"`
	InstrumentID       string          `json:"instrument_id"`
	EventID            string          `json:"event_id"`
	Side               domain.Side     `json:"side"`
	Quantity           decimal.Decimal `json:"quantity"`
	RequestedPrice     decimal.Decimal `json:"requested_price"`
	EstimatedFillPrice decimal.Decimal `json:"estimated_fill_price"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
	Fee                decimal.Decimal `json:"fee"`
}

// SettleResult is the account state after a settlement.
type SettleResult struct {
	Account  domain.Account         `json:"account"`
	Trade    domain.Trade           `json:"trade"`
	Drawdown domain.DrawdownStatus  `json:"drawdown"`
	Stage    domain.StageEvaluation `json:"stage"`
	Breached bool                   `json:"breached"`
}

// TradingStats summarises an account's settled trades.
type TradingStats struct {
	TotalTrades       int             `json:"total_trades"`
	WinningTrades     int             `json:"winning_trades"`
	WinRate           decimal.Decimal `json:"win_rate"`
	UniqueInstruments int             `json:"unique_instruments"`
}

// AccountSummary is the dashboard view of an account.
type AccountSummary struct {
	Account  domain.Account         `json:"account"`
	Drawdown domain.DrawdownStatus  `json:"drawdown"`
	Stage    domain.StageEvaluation `json:"stage"`
	Stats    TradingStats           `json:"stats"`
}

// AccountService owns account state changes. Every write runs under the
// account's lock and bumps its version.
type AccountService struct {
	ledger   Ledger
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier Notifier
	rules    risk.Rules
	lockCfg  LockConfig
	now      func() time.Time
	pub      publisher
	logger   *slog.Logger
}

// NewAccountService creates an AccountService. notifier may be nil.
func NewAccountService(
	ledger Ledger,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier Notifier,
	rules risk.Rules,
	lockCfg LockConfig,
	logger *slog.Logger,
) *AccountService {
	logger = logger.With(slog.String("component", "account_service"))
	return &AccountService{
		ledger:   ledger,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		rules:    rules,
		lockCfg:  lockCfg,
		now:      time.Now,
		pub:      publisher{bus: bus, logger: logger},
		logger:   logger,
	}
}

// Rules returns the rule set the service evaluates against.
func (s *AccountService) Rules() risk.Rules {
	return s.rules
}

// Open creates and persists a new evaluation account.
func (s *AccountService) Open(ctx context.Context, req OpenRequest) (domain.Account, error) {
	if strings.TrimSpace(req.TraderID) == "" {
		return domain.Account{}, fmt.Errorf("account_service: open: trader id required: %w", domain.ErrInvalidAccount)
	}
	acct, err := risk.OpenAccount(uuid.NewString(), req.TraderID, req.Tier, req.Addons, s.rules, s.now().UTC())
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: open: %w", err)
	}
	acct.Version = 1
	if err := s.ledger.Accounts.Create(ctx, acct); err != nil {
		return domain.Account{}, fmt.Errorf("account_service: create %s: %w", acct.ID, err)
	}

	auditLog(ctx, s.ledger.Audit, s.logger, domain.EventAccountOpened, map[string]any{
		"account_id":     acct.ID,
		"trader_id":      acct.TraderID,
		"tier":           string(acct.Tier),
		"drawdown_limit": acct.DrawdownLimit.String(),
		"express_pass":   acct.Addons.ExpressPass,
	})
	s.pub.publish(ctx, domain.AccountEvent{Type: domain.EventAccountOpened, AccountID: acct.ID, At: acct.CreatedAt, Data: acct})
	s.logger.InfoContext(ctx, "account opened",
		slog.String("account_id", acct.ID),
		slog.String("tier", string(acct.Tier)),
		slog.String("status", string(acct.Status)),
	)
	return acct, nil
}

// Get loads an account.
func (s *AccountService) Get(ctx context.Context, id string) (domain.Account, error) {
	acct, err := s.ledger.Accounts.Get(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: get %s: %w", id, err)
	}
	return acct, nil
}

// Settle applies one settled trade to an account and commits the account,
// ledger entry, equity snapshot and any breach record together.
func (s *AccountService) Settle(ctx context.Context, req SettleRequest) (SettleResult, error) {
	unlock, err := lockAccount(ctx, s.locks, req.AccountID, s.lockCfg)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("lock_timeout").Inc()
		return SettleResult{}, fmt.Errorf("account_service: settle: %w", err)
	}
	defer unlock()

	acct, err := s.ledger.Accounts.Get(ctx, req.AccountID)
	if err != nil {
		return SettleResult{}, fmt.Errorf("account_service: settle %s: %w", req.AccountID, err)
	}
	if err := checkTradable(acct); err != nil {
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		return SettleResult{}, fmt.Errorf("account_service: settle: %w", err)
	}

	now := s.now().UTC()
	trade := domain.Trade{
		ID:                 uuid.NewString(),
		AccountID:          acct.ID,
		Sequence:           int64(acct.TotalTrades) + 1,
		InstrumentID:       strings.TrimSpace(req.InstrumentID),
		EventID:            strings.TrimSpace(req.EventID),
		Side:               req.Side,
		Quantity:           req.Quantity,
		RequestedPrice:     req.RequestedPrice,
		EstimatedFillPrice: req.EstimatedFillPrice,
		RealizedPnL:        req.RealizedPnL,
		Fee:                req.Fee,
		Timestamp:          now,
	}

	next, dd, err := risk.ApplyTrade(acct, trade)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		return SettleResult{}, fmt.Errorf("account_service: settle: %w", err)
	}
	trade.EquityAfter = next.CurrentEquity

	var (
		eval      domain.StageEvaluation
		violation *domain.RuleViolation
	)
	if dd.IsBreached {
		next.BreachedAt = &now
		eval = risk.EvaluateStage(next, s.rules)
		violation = &domain.RuleViolation{
			ID:         uuid.NewString(),
			AccountID:  acct.ID,
			TradeID:    trade.ID,
			Type:       domain.BreachTrailingDrawdown,
			Equity:     next.CurrentEquity,
			Threshold:  dd.Floor,
			Detail:     fmt.Sprintf("equity %s below trailing floor %s (high-water mark %s)", next.CurrentEquity, dd.Floor, next.HighWaterMark),
			OccurredAt: now,
		}
	} else {
		next, eval = risk.Advance(next, s.rules, now)
	}
	next.Version = acct.Version + 1
	next.UpdatedAt = now
	dd = risk.DrawdownWithRules(next, s.rules)

	settlement := domain.Settlement{
		Account:         next,
		ExpectedVersion: acct.Version,
		Trade:           trade,
		Snapshot: domain.EquitySnapshot{
			AccountID:     next.ID,
			TradeID:       trade.ID,
			Status:        next.Status,
			Equity:        next.CurrentEquity,
			HighWaterMark: next.HighWaterMark,
			Floor:         dd.Floor,
			UsedFraction:  dd.Used,
			TakenAt:       now,
		},
		Violation: violation,
	}
	if err := s.ledger.Accounts.CommitSettlement(ctx, settlement); err != nil {
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return SettleResult{}, fmt.Errorf("account_service: commit settlement %s: %w", acct.ID, err)
	}

	res := SettleResult{Account: next, Trade: trade, Drawdown: dd, Stage: eval, Breached: dd.IsBreached}
	s.afterSettle(ctx, acct, res)
	return res, nil
}

func checkTradable(acct domain.Account) error {
	if acct.Status == domain.StatusBreached {
		return risk.NewBreachedAccountError(acct)
	}
	if !acct.Status.Tradable() {
		return fmt.Errorf("account %s is %s: %w", acct.ID, acct.Status, domain.ErrAccountFrozen)
	}
	return nil
}

func (s *AccountService) afterSettle(ctx context.Context, prev domain.Account, res SettleResult) {
	acct := res.Account
	s.pub.publish(ctx, domain.AccountEvent{Type: domain.EventTradeSettled, AccountID: acct.ID, At: res.Trade.Timestamp, Data: res})
	auditLog(ctx, s.ledger.Audit, s.logger, domain.EventTradeSettled, map[string]any{
		"account_id":   acct.ID,
		"trade_id":     res.Trade.ID,
		"sequence":     res.Trade.Sequence,
		"net_pnl":      res.Trade.NetPnL().String(),
		"equity_after": acct.CurrentEquity.String(),
	})

	switch {
	case res.Breached:
		metrics.SettlementsTotal.WithLabelValues("breached").Inc()
		metrics.StageTransitions.WithLabelValues(string(domain.StatusBreached)).Inc()
		s.pub.publish(ctx, domain.AccountEvent{Type: domain.EventAccountBreached, AccountID: acct.ID, At: res.Trade.Timestamp, Data: res.Drawdown})
		auditLog(ctx, s.ledger.Audit, s.logger, domain.EventAccountBreached, map[string]any{
			"account_id": acct.ID,
			"trade_id":   res.Trade.ID,
			"equity":     acct.CurrentEquity.String(),
			"floor":      res.Drawdown.Floor.String(),
		})
		sendAlert(ctx, s.notifier, s.logger, notify.Breached(acct, res.Drawdown.Floor.StringFixed(2)))
		s.logger.WarnContext(ctx, "account breached",
			slog.String("account_id", acct.ID),
			slog.String("equity", acct.CurrentEquity.String()),
			slog.String("floor", res.Drawdown.Floor.String()),
		)
	case res.Stage.Transitioned:
		metrics.SettlementsTotal.WithLabelValues("stage_passed").Inc()
		s.stagePassed(ctx, prev, acct, res.Stage)
	default:
		metrics.SettlementsTotal.WithLabelValues("ok").Inc()
	}
}

func (s *AccountService) stagePassed(ctx context.Context, prev, acct domain.Account, eval domain.StageEvaluation) {
	metrics.StageTransitions.WithLabelValues(string(acct.Status)).Inc()
	s.pub.publish(ctx, domain.AccountEvent{Type: domain.EventStagePassed, AccountID: acct.ID, At: acct.UpdatedAt, Data: eval})
	auditLog(ctx, s.ledger.Audit, s.logger, domain.EventStagePassed, map[string]any{
		"account_id": acct.ID,
		"from":       string(prev.Status),
		"to":         string(acct.Status),
		"equity":     acct.CurrentEquity.String(),
	})
	sendAlert(ctx, s.notifier, s.logger, notify.StagePassed(acct))
	s.logger.InfoContext(ctx, "stage passed",
		slog.String("account_id", acct.ID),
		slog.String("status", string(acct.Status)),
	)
}

// BeginStage2 starts Stage 2 for an account that passed Stage 1.
func (s *AccountService) BeginStage2(ctx context.Context, id string) (domain.Account, error) {
	return s.transition(ctx, id, domain.EventStageStarted, func(acct domain.Account) (domain.Account, error) {
		return risk.BeginStage2(acct)
	})
}

// PromotePartner funds an account that passed Stage 2. The trader's KYC
// must already be verified.
func (s *AccountService) PromotePartner(ctx context.Context, id string, kycVerified bool) (domain.Account, error) {
	if !kycVerified {
		return domain.Account{}, fmt.Errorf("account_service: promote %s: kyc not verified: %w", id, domain.ErrInvalidTransition)
	}
	return s.transition(ctx, id, domain.EventPartnerPromoted, risk.PromoteToPartner)
}

func (s *AccountService) transition(ctx context.Context, id, event string, fn func(domain.Account) (domain.Account, error)) (domain.Account, error) {
	unlock, err := lockAccount(ctx, s.locks, id, s.lockCfg)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: %s: %w", event, err)
	}
	defer unlock()

	acct, err := s.ledger.Accounts.Get(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: %s %s: %w", event, id, err)
	}
	next, err := fn(acct)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: %s: %w", event, err)
	}
	next.Version = acct.Version + 1
	next.UpdatedAt = s.now().UTC()
	if err := s.ledger.Accounts.Update(ctx, next, acct.Version); err != nil {
		return domain.Account{}, fmt.Errorf("account_service: %s %s: %w", event, id, err)
	}

	metrics.StageTransitions.WithLabelValues(string(next.Status)).Inc()
	s.pub.publish(ctx, domain.AccountEvent{Type: event, AccountID: id, At: next.UpdatedAt, Data: next})
	auditLog(ctx, s.ledger.Audit, s.logger, event, map[string]any{
		"account_id": id,
		"from":       string(acct.Status),
		"to":         string(next.Status),
	})
	s.logger.InfoContext(ctx, "account transitioned",
		slog.String("account_id", id),
		slog.String("from", string(acct.Status)),
		slog.String("to", string(next.Status)),
	)
	return next, nil
}

// Summary builds the dashboard view of an account.
func (s *AccountService) Summary(ctx context.Context, id string) (AccountSummary, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return AccountSummary{}, err
	}
	return AccountSummary{
		Account:  acct,
		Drawdown: risk.DrawdownWithRules(acct, s.rules),
		Stage:    risk.EvaluateStage(acct, s.rules),
		Stats: TradingStats{
			TotalTrades:       acct.TotalTrades,
			WinningTrades:     acct.WinningTrades,
			WinRate:           acct.WinRate(),
			UniqueInstruments: acct.UniqueInstruments(),
		},
	}, nil
}

// Consistency checks profit concentration against the current stage's
// required profit.
func (s *AccountService) Consistency(ctx context.Context, id string) (domain.ConsistencyResult, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return domain.ConsistencyResult{}, err
	}
	required := acct.StageStartBalance.Mul(s.rules.StageTarget(acct.Stage()))
	return risk.CheckConsistency(acct.EventProfits, required, s.rules.ConsistencyLimit), nil
}

// Trades lists an account's ledger, newest first.
func (s *AccountService) Trades(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Trade, error) {
	trades, err := s.ledger.Trades.ListByAccount(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: trades %s: %w", id, err)
	}
	return trades, nil
}

// Snapshots lists an account's equity history, newest first.
func (s *AccountService) Snapshots(ctx context.Context, id string, opts domain.ListOpts) ([]domain.EquitySnapshot, error) {
	snaps, err := s.ledger.Snapshots.ListByAccount(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: snapshots %s: %w", id, err)
	}
	return snaps, nil
}

// Violations lists an account's rule violations.
func (s *AccountService) Violations(ctx context.Context, id string) ([]domain.RuleViolation, error) {
	v, err := s.ledger.Violations.ListByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account_service: violations %s: %w", id, err)
	}
	return v, nil
}

// RecentSettlements reads the settlement stream after lastID.
func (s *AccountService) RecentSettlements(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if s.bus == nil {
		return nil, nil
	}
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, domain.SettlementStream, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("account_service: settlements: %w", err)
	}
	return msgs, nil
}

// Audit lists audit log entries, newest first.
func (s *AccountService) Audit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	entries, err := s.ledger.Audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: audit: %w", err)
	}
	return entries, nil
}
