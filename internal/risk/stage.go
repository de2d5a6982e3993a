package risk

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EvaluateStage reports progress toward the current stage target and
// whether the account qualifies to move to the passed state. It does not
// change the account; use Advance to apply the verdict.
func EvaluateStage(acct domain.Account, rules Rules) domain.StageEvaluation {
	stage := acct.Stage()
	target := rules.StageTarget(stage)
	start := acct.StageStartBalance
	required := start.Mul(target)

	profit := acct.CurrentEquity.Sub(start)
	frac := decimal.Zero
	if start.IsPositive() {
		frac = profit.Div(start)
	}
	pct := decimal.Zero
	if target.IsPositive() {
		pct = clamp(frac.Mul(hundred).Div(target), decimal.Zero, hundred)
	}

	consistency := CheckConsistency(acct.EventProfits, required, rules.ConsistencyLimit)
	eval := domain.StageEvaluation{
		Current:      acct.Status,
		Next:         acct.Status,
		Consistency:  consistency,
		MinContracts: rules.MinContracts,
		Progress: domain.StageProgress{
			Stage:           stage,
			StartingBalance: start,
			CurrentBalance:  acct.CurrentEquity,
			TargetFraction:  target,
			TargetBalance:   start.Add(required),
			ProfitRequired:  required,
			CurrentProfit:   profit,
			ProfitFraction:  frac,
			ProgressPercent: pct,
			IsComplete:      target.IsPositive() && frac.GreaterThanOrEqual(target),
		},
		UniqueInstruments: acct.UniqueInstruments(),
		Blockers:          []domain.StageBlocker{},
	}

	if !acct.Status.InProgress() {
		return eval
	}

	if !eval.Progress.IsComplete {
		eval.Blockers = append(eval.Blockers, domain.BlockerProfitTarget)
	}
	switch consistency.Verdict {
	case domain.ConsistencyNonCompliant:
		eval.Blockers = append(eval.Blockers, domain.BlockerConsistencyViolation)
	case domain.ConsistencyIndeterminate:
		eval.Blockers = append(eval.Blockers, domain.BlockerConsistencyIndeterminate)
	}
	if eval.UniqueInstruments < rules.MinContracts {
		eval.Blockers = append(eval.Blockers, domain.BlockerMinContracts)
	}

	if len(eval.Blockers) == 0 {
		eval.Transitioned = true
		if acct.Status == domain.StatusStage1InProgress {
			eval.Next = domain.StatusStage1Passed
		} else {
			eval.Next = domain.StatusStage2Passed
		}
	}
	return eval
}

// Advance evaluates acct and applies a stage pass if one is due. Passed
// stages are stamped with now.
func Advance(acct domain.Account, rules Rules, now time.Time) (domain.Account, domain.StageEvaluation) {
	eval := EvaluateStage(acct, rules)
	if !eval.Transitioned {
		return acct, eval
	}
	next := acct.Clone()
	next.Status = eval.Next
	ts := now
	switch eval.Next {
	case domain.StatusStage1Passed:
		next.Stage1PassedAt = &ts
	case domain.StatusStage2Passed:
		next.Stage2PassedAt = &ts
	}
	return next, eval
}

// BeginStage2 moves a Stage 1 pass into Stage 2. Equity is frozen while
// passed, so the new stage is measured from equity at the moment of passing.
// Per-stage counters start over.
func BeginStage2(acct domain.Account) (domain.Account, error) {
	if acct.Status != domain.StatusStage1Passed {
		return acct, fmt.Errorf("risk: begin stage 2 from %s: %w", acct.Status, domain.ErrInvalidTransition)
	}
	next := acct.Clone()
	next.Status = domain.StatusStage2InProgress
	next.StageStartBalance = acct.CurrentEquity
	next.EventProfits = map[string]decimal.Decimal{}
	next.Instruments = []string{}
	return next, nil
}

// PromoteToPartner funds an account that has passed Stage 2.
func PromoteToPartner(acct domain.Account) (domain.Account, error) {
	if acct.Status != domain.StatusStage2Passed {
		return acct, fmt.Errorf("risk: promote to partner from %s: %w", acct.Status, domain.ErrInvalidTransition)
	}
	next := acct.Clone()
	next.Status = domain.StatusPartner
	return next, nil
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(hi, decimal.Max(lo, v))
}
