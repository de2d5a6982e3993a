package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot records account equity and drawdown after a settlement.
type EquitySnapshot struct {
	ID            int64           `json:"id"`
	AccountID     string          `json:"account_id"`
	TradeID       string          `json:"trade_id,omitempty"`
	Status        AccountStatus   `json:"status"`
	Equity        decimal.Decimal `json:"equity"`
	HighWaterMark decimal.Decimal `json:"high_water_mark"`
	Floor         decimal.Decimal `json:"floor"`
	UsedFraction  decimal.Decimal `json:"used_fraction"`
	TakenAt       time.Time       `json:"taken_at"`
}

// BreachType classifies a rule violation.
type BreachType string

const (
	BreachTrailingDrawdown BreachType = "TRAILING_DRAWDOWN"
	BreachConsistency      BreachType = "CONSISTENCY"
)

// RuleViolation is an immutable record of a rule being broken.
type RuleViolation struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	TradeID    string          `json:"trade_id,omitempty"`
	Type       BreachType      `json:"type"`
	Equity     decimal.Decimal `json:"equity"`
	Threshold  decimal.Decimal `json:"threshold"`
	Detail     string          `json:"detail"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Settlement bundles everything written atomically when a trade settles.
// Violation is nil unless the trade breached the account.
type Settlement struct {
	Account         Account
	ExpectedVersion int64
	Trade           Trade
	Snapshot        EquitySnapshot
	Violation       *RuleViolation
}
