// Package risk implements the evaluation rules engine: fill estimation
// against book depth, trailing drawdown, profit consistency, stage
// progression and payout eligibility. Every function here is pure.
package risk

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// Rules holds the evaluation parameters applied to every account.
type Rules struct {
	DrawdownLimit       decimal.Decimal
	DrawdownShieldLimit decimal.Decimal
	ProfitTargetStage1  decimal.Decimal
	ProfitTargetStage2  decimal.Decimal
	ConsistencyLimit    decimal.Decimal
	MinContracts        int
	TraderSplit         decimal.Decimal
	MinPayout           decimal.Decimal
	PayoutCooldown      time.Duration
	// WarningAt and DangerAt are fractions of the drawdown limit used.
	WarningAt decimal.Decimal
	DangerAt  decimal.Decimal
}

// DefaultRules returns the standard evaluation parameters.
func DefaultRules() Rules {
	return Rules{
		DrawdownLimit:       decimal.RequireFromString("0.08"),
		DrawdownShieldLimit: decimal.RequireFromString("0.10"),
		ProfitTargetStage1:  decimal.RequireFromString("0.15"),
		ProfitTargetStage2:  decimal.RequireFromString("0.10"),
		ConsistencyLimit:    decimal.RequireFromString("0.40"),
		MinContracts:        10,
		TraderSplit:         decimal.RequireFromString("0.80"),
		MinPayout:           decimal.NewFromInt(100),
		PayoutCooldown:      14 * 24 * time.Hour,
		WarningAt:           decimal.RequireFromString("0.5"),
		DangerAt:            decimal.RequireFromString("0.8"),
	}
}

// Validate checks that every fraction is in range.
func (r Rules) Validate() error {
	inUnit := func(name string, v decimal.Decimal, allowOne bool) error {
		if !v.IsPositive() || v.GreaterThan(decimal.NewFromInt(1)) || (!allowOne && v.Equal(decimal.NewFromInt(1))) {
			return fmt.Errorf("risk: rules: %s %s out of range", name, v)
		}
		return nil
	}
	checks := []error{
		inUnit("drawdown_limit", r.DrawdownLimit, false),
		inUnit("drawdown_shield_limit", r.DrawdownShieldLimit, false),
		inUnit("profit_target_stage1", r.ProfitTargetStage1, true),
		inUnit("profit_target_stage2", r.ProfitTargetStage2, true),
		inUnit("consistency_limit", r.ConsistencyLimit, true),
		inUnit("trader_split", r.TraderSplit, true),
		inUnit("warning_at", r.WarningAt, true),
		inUnit("danger_at", r.DangerAt, true),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if r.WarningAt.GreaterThan(r.DangerAt) {
		return fmt.Errorf("risk: rules: warning_at %s above danger_at %s", r.WarningAt, r.DangerAt)
	}
	if r.MinContracts < 0 {
		return fmt.Errorf("risk: rules: min_contracts %d negative", r.MinContracts)
	}
	if r.MinPayout.IsNegative() {
		return fmt.Errorf("risk: rules: min_payout %s negative", r.MinPayout)
	}
	return nil
}

// StageTarget returns the profit target for the given stage.
func (r Rules) StageTarget(stage int) decimal.Decimal {
	if stage == 2 {
		return r.ProfitTargetStage2
	}
	return r.ProfitTargetStage1
}

// TierConfig describes one purchasable account size.
type TierConfig struct {
	Tier         domain.Tier     `json:"tier"`
	Name         string          `json:"name"`
	AccountSize  decimal.Decimal `json:"account_size"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
}

var tiers = []TierConfig{
	{Tier: domain.Tier10K, Name: "Starter", AccountSize: decimal.NewFromInt(10_000), MonthlyPrice: decimal.NewFromInt(99)},
	{Tier: domain.Tier50K, Name: "Standard", AccountSize: decimal.NewFromInt(50_000), MonthlyPrice: decimal.NewFromInt(250)},
	{Tier: domain.Tier75K, Name: "Advanced", AccountSize: decimal.NewFromInt(75_000), MonthlyPrice: decimal.NewFromInt(375)},
	{Tier: domain.Tier100K, Name: "Professional", AccountSize: decimal.NewFromInt(100_000), MonthlyPrice: decimal.NewFromInt(500)},
	{Tier: domain.Tier150K, Name: "Elite", AccountSize: decimal.NewFromInt(150_000), MonthlyPrice: decimal.NewFromInt(750)},
}

// Tiers returns the tier table ordered by account size.
func Tiers() []TierConfig {
	return append([]TierConfig(nil), tiers...)
}

// LookupTier returns the configuration for t.
func LookupTier(t domain.Tier) (TierConfig, bool) {
	for _, tc := range tiers {
		if tc.Tier == t {
			return tc, true
		}
	}
	return TierConfig{}, false
}

// OpenAccount builds the initial state of a newly purchased evaluation.
func OpenAccount(id, traderID string, tier domain.Tier, addons domain.Addons, rules Rules, now time.Time) (domain.Account, error) {
	tc, ok := LookupTier(tier)
	if !ok {
		return domain.Account{}, fmt.Errorf("risk: open account: unknown tier %q: %w", tier, domain.ErrInvalidAccount)
	}
	if id == "" {
		return domain.Account{}, fmt.Errorf("risk: open account: id required: %w", domain.ErrInvalidAccount)
	}

	limit := rules.DrawdownLimit
	if addons.DrawdownShield {
		limit = rules.DrawdownShieldLimit
	}
	status := domain.StatusStage1InProgress
	if addons.ExpressPass {
		status = domain.StatusStage2InProgress
	}

	return domain.Account{
		ID:                id,
		TraderID:          traderID,
		Tier:              tier,
		Addons:            addons,
		Status:            status,
		StartingBalance:   tc.AccountSize,
		StageStartBalance: tc.AccountSize,
		CurrentEquity:     tc.AccountSize,
		HighWaterMark:     tc.AccountSize,
		DrawdownLimit:     limit,
		EventProfits:      map[string]decimal.Decimal{},
		Instruments:       []string{},
		PaidOut:           decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
