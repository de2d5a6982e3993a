package risk

import (
	"fmt"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// PayoutIneligibleError carries the reason a payout was refused. It matches
// domain.ErrPayoutIneligible.
type PayoutIneligibleError struct {
	Reason domain.IneligibilityReason
	Detail string
}

func (e *PayoutIneligibleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("payout ineligible: %s", e.Reason)
	}
	return fmt.Sprintf("payout ineligible: %s: %s", e.Reason, e.Detail)
}

func (e *PayoutIneligibleError) Unwrap() error { return domain.ErrPayoutIneligible }

// CalculatePayout splits gross profit between trader and platform. Only
// accounts that passed Stage 2 (or were funded) are paid, and only when the
// trader's share reaches minPayout. The net amount is never rounded up.
func CalculatePayout(gross, split, minPayout decimal.Decimal, status domain.AccountStatus) domain.PayoutCalculation {
	one := decimal.NewFromInt(1)
	calc := domain.PayoutCalculation{
		GrossProfit:        gross,
		TraderSplit:        split,
		PlatformFeePercent: one.Sub(split),
		PlatformFee:        decimal.Zero,
		MinPayout:          minPayout,
		NetPayout:          decimal.Zero,
	}

	share := gross.Mul(split)
	switch {
	case status != domain.StatusStage2Passed && status != domain.StatusPartner:
		calc.IneligibilityReason = domain.ReasonNotQualified
	case !gross.IsPositive():
		calc.IneligibilityReason = domain.ReasonNoProfit
	case share.LessThan(minPayout):
		calc.IneligibilityReason = domain.ReasonBelowMinimum
	default:
		calc.IsEligible = true
		calc.NetPayout = share
		calc.PlatformFee = gross.Sub(share)
	}
	return calc
}

// IneligibleError converts an ineligible calculation into an error, or
// returns nil when calc is eligible.
func IneligibleError(calc domain.PayoutCalculation) error {
	if calc.IsEligible {
		return nil
	}
	detail := ""
	if calc.IneligibilityReason == domain.ReasonBelowMinimum {
		detail = fmt.Sprintf("net %s below minimum %s", calc.GrossProfit.Mul(calc.TraderSplit), calc.MinPayout)
	}
	return &PayoutIneligibleError{Reason: calc.IneligibilityReason, Detail: detail}
}
