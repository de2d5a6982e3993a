package domain

import "github.com/shopspring/decimal"

// FillEstimate is the Liquidity Guard result for a hypothetical order. It is
// recomputed per quote and never persisted.
type FillEstimate struct {
	InstrumentID              string          `json:"instrument_id"`
	Side                      Side            `json:"side"`
	RequestedQuantity         decimal.Decimal `json:"requested_quantity"`
	FillableQuantity          decimal.Decimal `json:"fillable_quantity"`
	AvgPrice                  decimal.Decimal `json:"avg_price"`
	BestPrice                 decimal.Decimal `json:"best_price"`
	WorstPrice                decimal.Decimal `json:"worst_price"`
	Notional                  decimal.Decimal `json:"notional"`
	SlippageFraction          decimal.Decimal `json:"slippage_fraction"`
	LiquidityConsumedFraction decimal.Decimal `json:"liquidity_consumed_fraction"`
	LevelsConsumed            int             `json:"levels_consumed"`
	IsPartial                 bool            `json:"is_partial"`
	NoLiquidity               bool            `json:"no_liquidity"`
}

// DrawdownLevel buckets how much of the drawdown allowance is used.
type DrawdownLevel string

const (
	DrawdownSafe    DrawdownLevel = "safe"
	DrawdownWarning DrawdownLevel = "warning"
	DrawdownDanger  DrawdownLevel = "danger"
)

// DrawdownStatus is derived from an account on every equity update.
type DrawdownStatus struct {
	Equity        decimal.Decimal `json:"equity"`
	HighWaterMark decimal.Decimal `json:"high_water_mark"`
	Limit         decimal.Decimal `json:"limit"`
	Floor         decimal.Decimal `json:"floor"`
	Used          decimal.Decimal `json:"used"`
	UsedOfLimit   decimal.Decimal `json:"used_of_limit"`
	Remaining     decimal.Decimal `json:"remaining"`
	Level         DrawdownLevel   `json:"level"`
	IsWarning     bool            `json:"is_warning"`
	IsBreached    bool            `json:"is_breached"`
}

// ConsistencyVerdict is the outcome of a consistency check.
type ConsistencyVerdict string

const (
	ConsistencyCompliant     ConsistencyVerdict = "COMPLIANT"
	ConsistencyNonCompliant  ConsistencyVerdict = "NON_COMPLIANT"
	ConsistencyIndeterminate ConsistencyVerdict = "INDETERMINATE"
)

// ConsistencyResult explains how concentrated profit is across events.
type ConsistencyResult struct {
	Verdict             ConsistencyVerdict         `json:"verdict"`
	IsCompliant         bool                       `json:"is_compliant"`
	RequiredProfit      decimal.Decimal            `json:"required_profit"`
	MaxShare            decimal.Decimal            `json:"max_share"`
	TotalPositiveProfit decimal.Decimal            `json:"total_positive_profit"`
	Shares              map[string]decimal.Decimal `json:"shares"`
	LargestEvent        string                     `json:"largest_event,omitempty"`
	LargestShare        decimal.Decimal            `json:"largest_share"`
	Violations          []string                   `json:"violations"`
}

// StageProgress is the dashboard view of the current stage.
type StageProgress struct {
	Stage           int             `json:"stage"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	TargetFraction  decimal.Decimal `json:"target_fraction"`
	TargetBalance   decimal.Decimal `json:"target_balance"`
	ProfitRequired  decimal.Decimal `json:"profit_required"`
	CurrentProfit   decimal.Decimal `json:"current_profit"`
	ProfitFraction  decimal.Decimal `json:"profit_fraction"`
	ProgressPercent decimal.Decimal `json:"progress_percent"`
	IsComplete      bool            `json:"is_complete"`
}

// StageBlocker names a condition still preventing a stage pass.
type StageBlocker string

const (
	BlockerProfitTarget             StageBlocker = "PROFIT_TARGET_NOT_MET"
	BlockerConsistencyViolation     StageBlocker = "CONSISTENCY_VIOLATION"
	BlockerConsistencyIndeterminate StageBlocker = "CONSISTENCY_INDETERMINATE"
	BlockerMinContracts             StageBlocker = "MIN_CONTRACTS_NOT_MET"
)

// StageEvaluation is the full, explainable stage verdict for an account.
type StageEvaluation struct {
	Current           AccountStatus     `json:"current"`
	Next              AccountStatus     `json:"next"`
	Transitioned      bool              `json:"transitioned"`
	Progress          StageProgress     `json:"progress"`
	Consistency       ConsistencyResult `json:"consistency"`
	UniqueInstruments int               `json:"unique_instruments"`
	MinContracts      int               `json:"min_contracts"`
	Blockers          []StageBlocker    `json:"blockers"`
}

// IneligibilityReason explains why a payout was refused.
type IneligibilityReason string

const (
	ReasonBelowMinimum   IneligibilityReason = "BELOW_MINIMUM"
	ReasonNotQualified   IneligibilityReason = "NOT_QUALIFIED"
	ReasonNoProfit       IneligibilityReason = "NO_PROFIT"
	ReasonKYCRequired    IneligibilityReason = "KYC_REQUIRED"
	ReasonCooldownActive IneligibilityReason = "COOLDOWN_ACTIVE"
)

// PayoutCalculation is the Payout Calculator result.
type PayoutCalculation struct {
	GrossProfit         decimal.Decimal     `json:"gross_profit"`
	TraderSplit         decimal.Decimal     `json:"trader_split"`
	PlatformFeePercent  decimal.Decimal     `json:"platform_fee_percent"`
	PlatformFee         decimal.Decimal     `json:"platform_fee"`
	MinPayout           decimal.Decimal     `json:"min_payout"`
	NetPayout           decimal.Decimal     `json:"net_payout"`
	IsEligible          bool                `json:"is_eligible"`
	IneligibilityReason IneligibilityReason `json:"ineligibility_reason,omitempty"`
}
