package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the evaluation state of an account.
type AccountStatus string

const (
	StatusStage1InProgress AccountStatus = "STAGE_1_IN_PROGRESS"
	StatusStage1Passed     AccountStatus = "STAGE_1_PASSED"
	StatusStage2InProgress AccountStatus = "STAGE_2_IN_PROGRESS"
	StatusStage2Passed     AccountStatus = "STAGE_2_PASSED"
	StatusPartner          AccountStatus = "PARTNER"
	StatusBreached         AccountStatus = "BREACHED"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusStage1InProgress, StatusStage1Passed, StatusStage2InProgress,
		StatusStage2Passed, StatusPartner, StatusBreached:
		return true
	}
	return false
}

// Stage returns the evaluation stage the status belongs to (1 or 2).
// Breached accounts report 0.
func (s AccountStatus) Stage() int {
	switch s {
	case StatusStage1InProgress, StatusStage1Passed:
		return 1
	case StatusStage2InProgress, StatusStage2Passed, StatusPartner:
		return 2
	}
	return 0
}

// InProgress reports whether the status is an active evaluation stage.
func (s AccountStatus) InProgress() bool {
	return s == StatusStage1InProgress || s == StatusStage2InProgress
}

// Tradable reports whether settled trades may change equity.
func (s AccountStatus) Tradable() bool {
	return s.InProgress() || s == StatusPartner
}

// Tier identifies an evaluation account size.
type Tier string

const (
	Tier10K  Tier = "TIER_10K"
	Tier50K  Tier = "TIER_50K"
	Tier75K  Tier = "TIER_75K"
	Tier100K Tier = "TIER_100K"
	Tier150K Tier = "TIER_150K"
)

// Addons are optional purchase-time variants of an evaluation.
type Addons struct {
	DrawdownShield bool `json:"drawdown_shield"`
	ExpressPass    bool `json:"express_pass"`
}

// Account is the persisted evaluation state of one trader account.
// HighWaterMark never decreases and is never below StartingBalance.
// StageStartBalance is the equity the current stage is measured from.
type Account struct {
	ID                string                     `json:"id"`
	TraderID          string                     `json:"trader_id"`
	Tier              Tier                       `json:"tier"`
	Addons            Addons                     `json:"addons"`
	Status            AccountStatus              `json:"status"`
	StartingBalance   decimal.Decimal            `json:"starting_balance"`
	StageStartBalance decimal.Decimal            `json:"stage_start_balance"`
	CurrentEquity     decimal.Decimal            `json:"current_equity"`
	HighWaterMark     decimal.Decimal            `json:"high_water_mark"`
	DrawdownLimit     decimal.Decimal            `json:"drawdown_limit"`
	EventProfits      map[string]decimal.Decimal `json:"event_profits"`
	Instruments       []string                   `json:"instruments"`
	TotalTrades       int                        `json:"total_trades"`
	WinningTrades     int                        `json:"winning_trades"`
	PaidOut           decimal.Decimal            `json:"paid_out"`
	LastPayoutAt      *time.Time                 `json:"last_payout_at,omitempty"`
	Stage1PassedAt    *time.Time                 `json:"stage1_passed_at,omitempty"`
	Stage2PassedAt    *time.Time                 `json:"stage2_passed_at,omitempty"`
	BreachedAt        *time.Time                 `json:"breached_at,omitempty"`
	Version           int64                      `json:"version"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// Stage returns the evaluation stage the account is in. A breached account
// reports the stage it breached in: stage 2 once stage 1 has been passed or
// skipped with ExpressPass, stage 1 otherwise.
func (a Account) Stage() int {
	if a.Status != StatusBreached {
		return a.Status.Stage()
	}
	if a.Stage1PassedAt != nil || a.Addons.ExpressPass {
		return 2
	}
	return 1
}

// Clone returns a deep copy so callers can derive a new state without
// aliasing the event-profit map or instrument set of the original.
func (a Account) Clone() Account {
	out := a
	out.EventProfits = make(map[string]decimal.Decimal, len(a.EventProfits))
	for k, v := range a.EventProfits {
		out.EventProfits[k] = v
	}
	out.Instruments = append([]string(nil), a.Instruments...)
	out.LastPayoutAt = cloneTime(a.LastPayoutAt)
	out.Stage1PassedAt = cloneTime(a.Stage1PassedAt)
	out.Stage2PassedAt = cloneTime(a.Stage2PassedAt)
	out.BreachedAt = cloneTime(a.BreachedAt)
	return out
}

// AddInstrument inserts id into the sorted unique instrument set.
func (a *Account) AddInstrument(id string) {
	i := sort.SearchStrings(a.Instruments, id)
	if i < len(a.Instruments) && a.Instruments[i] == id {
		return
	}
	a.Instruments = append(a.Instruments, "")
	copy(a.Instruments[i+1:], a.Instruments[i:])
	a.Instruments[i] = id
}

// UniqueInstruments is the number of distinct instruments traded this stage.
func (a Account) UniqueInstruments() int {
	return len(a.Instruments)
}

// WinRate is the fraction of settled trades with positive net PnL.
func (a Account) WinRate() decimal.Decimal {
	if a.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.WinningTrades)).Div(decimal.NewFromInt(int64(a.TotalTrades)))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
