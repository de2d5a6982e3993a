package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
	"github.com/alanyoungcy/polyprop/internal/notify"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

// PayoutRequestInput is a trader's withdrawal request.
type PayoutRequestInput struct {
	AccountID   string `json:"-"`
	KYCVerified bool   `json:"kyc_verified"`
	Wallet      string `json:"wallet"`
}

// PayoutService calculates and records payout requests.
type PayoutService struct {
	ledger   Ledger
	locks    domain.LockManager
	notifier Notifier
	rules    risk.Rules
	lockCfg  LockConfig
	now      func() time.Time
	pub      publisher
	logger   *slog.Logger
}

// NewPayoutService creates a PayoutService. bus and notifier may be nil.
func NewPayoutService(
	ledger Ledger,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier Notifier,
	rules risk.Rules,
	lockCfg LockConfig,
	logger *slog.Logger,
) *PayoutService {
	logger = logger.With(slog.String("component", "payout_service"))
	return &PayoutService{
		ledger:   ledger,
		locks:    locks,
		notifier: notifier,
		rules:    rules,
		lockCfg:  lockCfg,
		now:      time.Now,
		pub:      publisher{bus: bus, logger: logger},
		logger:   logger,
	}
}

// grossProfit is the profit available for withdrawal: equity above the
// current stage's start balance, less what was already paid out.
func grossProfit(acct domain.Account) decimal.Decimal {
	return acct.CurrentEquity.Sub(acct.StageStartBalance).Sub(acct.PaidOut)
}

// Preview calculates what a payout request would pay right now.
func (s *PayoutService) Preview(ctx context.Context, accountID string) (domain.PayoutCalculation, error) {
	acct, err := s.ledger.Accounts.Get(ctx, accountID)
	if err != nil {
		return domain.PayoutCalculation{}, fmt.Errorf("payout_service: preview %s: %w", accountID, err)
	}
	return risk.CalculatePayout(grossProfit(acct), s.rules.TraderSplit, s.rules.MinPayout, acct.Status), nil
}

// Request validates and records a payout request. Ineligible requests return
// a *risk.PayoutIneligibleError carrying the reason.
func (s *PayoutService) Request(ctx context.Context, in PayoutRequestInput) (domain.PayoutRequest, error) {
	if !in.KYCVerified {
		return s.reject(ctx, in.AccountID, &risk.PayoutIneligibleError{Reason: domain.ReasonKYCRequired})
	}
	if !common.IsHexAddress(in.Wallet) {
		metrics.PayoutsTotal.WithLabelValues("invalid_wallet").Inc()
		return domain.PayoutRequest{}, fmt.Errorf("payout_service: wallet %q: %w", in.Wallet, domain.ErrInvalidWallet)
	}
	wallet := common.HexToAddress(in.Wallet)
	if wallet == (common.Address{}) {
		metrics.PayoutsTotal.WithLabelValues("invalid_wallet").Inc()
		return domain.PayoutRequest{}, fmt.Errorf("payout_service: zero wallet: %w", domain.ErrInvalidWallet)
	}

	unlock, err := lockAccount(ctx, s.locks, in.AccountID, s.lockCfg)
	if err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("payout_service: request: %w", err)
	}
	defer unlock()

	acct, err := s.ledger.Accounts.Get(ctx, in.AccountID)
	if err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("payout_service: request %s: %w", in.AccountID, err)
	}

	now := s.now().UTC()
	if acct.LastPayoutAt != nil && s.rules.PayoutCooldown > 0 {
		next := acct.LastPayoutAt.Add(s.rules.PayoutCooldown)
		if now.Before(next) {
			return s.reject(ctx, acct.ID, &risk.PayoutIneligibleError{
				Reason: domain.ReasonCooldownActive,
				Detail: "next request allowed at " + next.UTC().Format(time.RFC3339),
			})
		}
	}

	calc := risk.CalculatePayout(grossProfit(acct), s.rules.TraderSplit, s.rules.MinPayout, acct.Status)
	if err := risk.IneligibleError(calc); err != nil {
		return s.reject(ctx, acct.ID, err)
	}

	req := domain.PayoutRequest{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		GrossProfit: calc.GrossProfit,
		TraderSplit: calc.TraderSplit,
		PlatformFee: calc.PlatformFee,
		NetPayout:   calc.NetPayout,
		Wallet:      wallet.Hex(),
		Status:      domain.PayoutPending,
		RequestedAt: now,
	}

	next := acct.Clone()
	next.PaidOut = acct.PaidOut.Add(calc.GrossProfit)
	next.LastPayoutAt = &now
	next.Version = acct.Version + 1
	next.UpdatedAt = now
	if err := s.ledger.Accounts.CommitPayout(ctx, next, acct.Version, req); err != nil {
		metrics.PayoutsTotal.WithLabelValues("error").Inc()
		return domain.PayoutRequest{}, fmt.Errorf("payout_service: commit payout %s: %w", acct.ID, err)
	}

	metrics.PayoutsTotal.WithLabelValues("accepted").Inc()
	s.pub.publish(ctx, domain.AccountEvent{Type: domain.EventPayoutRequested, AccountID: acct.ID, At: now, Data: req})
	auditLog(ctx, s.ledger.Audit, s.logger, domain.EventPayoutRequested, map[string]any{
		"account_id": acct.ID,
		"payout_id":  req.ID,
		"gross":      req.GrossProfit.String(),
		"net":        req.NetPayout.String(),
		"wallet":     req.Wallet,
	})
	sendAlert(ctx, s.notifier, s.logger, notify.PayoutRequested(req))
	s.logger.InfoContext(ctx, "payout requested",
		slog.String("account_id", acct.ID),
		slog.String("payout_id", req.ID),
		slog.String("net", req.NetPayout.String()),
	)
	return req, nil
}

func (s *PayoutService) reject(ctx context.Context, accountID string, err error) (domain.PayoutRequest, error) {
	reason := "ineligible"
	var pe *risk.PayoutIneligibleError
	if errors.As(err, &pe) {
		reason = string(pe.Reason)
	}
	metrics.PayoutsTotal.WithLabelValues(reason).Inc()
	s.logger.InfoContext(ctx, "payout rejected",
		slog.String("account_id", accountID),
		slog.String("reason", reason),
	)
	return domain.PayoutRequest{}, fmt.Errorf("payout_service: %w", err)
}

// List returns an account's payout history, newest first.
func (s *PayoutService) List(ctx context.Context, accountID string) ([]domain.PayoutRequest, error) {
	out, err := s.ledger.Payouts.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("payout_service: list %s: %w", accountID, err)
	}
	return out, nil
}
