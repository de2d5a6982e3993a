package risk

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// BreachedAccountError is returned when equity is applied to an account
// that has already breached. It matches domain.ErrAccountBreached.
type BreachedAccountError struct {
	AccountID  string
	BreachedAt string
}

func (e *BreachedAccountError) Error() string {
	if e.BreachedAt == "" {
		return fmt.Sprintf("account %s is breached", e.AccountID)
	}
	return fmt.Sprintf("account %s breached at %s", e.AccountID, e.BreachedAt)
}

func (e *BreachedAccountError) Unwrap() error { return domain.ErrAccountBreached }

// NewBreachedAccountError reports that acct has already breached.
func NewBreachedAccountError(acct domain.Account) error {
	e := &BreachedAccountError{AccountID: acct.ID}
	if acct.BreachedAt != nil {
		e.BreachedAt = acct.BreachedAt.UTC().Format(time.RFC3339)
	}
	return e
}

// Level thresholds as fractions of the drawdown limit used.
var (
	levelWarningAt = decimal.RequireFromString("0.5")
	levelDangerAt  = decimal.RequireFromString("0.8")
)

// UpdateEquity applies a new equity value to acct. The high-water mark only
// ratchets up; equity strictly below the trailing floor breaches the
// account. The input account is not modified.
func UpdateEquity(acct domain.Account, equity decimal.Decimal) (domain.Account, domain.DrawdownStatus, error) {
	if acct.Status == domain.StatusBreached {
		return acct, Drawdown(acct), NewBreachedAccountError(acct)
	}

	next := acct.Clone()
	next.HighWaterMark = decimal.Max(acct.HighWaterMark, equity)
	next.CurrentEquity = equity

	status := Drawdown(next)
	if status.IsBreached {
		next.Status = domain.StatusBreached
	}
	return next, status, nil
}

// Drawdown derives the trailing drawdown status of acct.
func Drawdown(acct domain.Account) domain.DrawdownStatus {
	return drawdownStatus(acct.HighWaterMark, acct.CurrentEquity, acct.DrawdownLimit, levelWarningAt, levelDangerAt)
}

// DrawdownWithRules derives the status using the rule set's warning bands.
func DrawdownWithRules(acct domain.Account, rules Rules) domain.DrawdownStatus {
	return drawdownStatus(acct.HighWaterMark, acct.CurrentEquity, acct.DrawdownLimit, rules.WarningAt, rules.DangerAt)
}

func drawdownStatus(hwm, equity, limit, warnAt, dangerAt decimal.Decimal) domain.DrawdownStatus {
	one := decimal.NewFromInt(1)
	floor := decimal.Max(decimal.Zero, hwm.Mul(one.Sub(limit)))

	used := decimal.Zero
	if hwm.IsPositive() {
		used = decimal.Max(decimal.Zero, hwm.Sub(equity)).Div(hwm)
	}
	usedOfLimit := decimal.Zero
	if limit.IsPositive() {
		usedOfLimit = used.Div(limit)
	}

	level := domain.DrawdownSafe
	switch {
	case usedOfLimit.GreaterThanOrEqual(dangerAt):
		level = domain.DrawdownDanger
	case usedOfLimit.GreaterThanOrEqual(warnAt):
		level = domain.DrawdownWarning
	}

	return domain.DrawdownStatus{
		Equity:        equity,
		HighWaterMark: hwm,
		Limit:         limit,
		Floor:         floor,
		Used:          used,
		UsedOfLimit:   usedOfLimit,
		Remaining:     decimal.Max(decimal.Zero, equity.Sub(floor)),
		Level:         level,
		IsWarning:     level != domain.DrawdownSafe,
		IsBreached:    equity.LessThan(floor),
	}
}
