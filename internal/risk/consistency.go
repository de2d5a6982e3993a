package risk

import (
	"sort"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// CheckConsistency measures how much of requiredProfit each profitable
// event contributed. The account is compliant when no single event's share
// exceeds maxShare. Losing events are ignored here.
func CheckConsistency(eventProfits map[string]decimal.Decimal, requiredProfit, maxShare decimal.Decimal) domain.ConsistencyResult {
	res := domain.ConsistencyResult{
		RequiredProfit:      requiredProfit,
		MaxShare:            maxShare,
		TotalPositiveProfit: decimal.Zero,
		Shares:              map[string]decimal.Decimal{},
		LargestShare:        decimal.Zero,
		Violations:          []string{},
	}
	if !requiredProfit.IsPositive() {
		res.Verdict = domain.ConsistencyIndeterminate
		return res
	}

	events := make([]string, 0, len(eventProfits))
	for ev, p := range eventProfits {
		if p.IsPositive() {
			events = append(events, ev)
		}
	}
	sort.Strings(events)

	for _, ev := range events {
		p := eventProfits[ev]
		share := p.Div(requiredProfit)
		res.Shares[ev] = share
		res.TotalPositiveProfit = res.TotalPositiveProfit.Add(p)
		if share.GreaterThan(res.LargestShare) {
			res.LargestShare = share
			res.LargestEvent = ev
		}
		if share.GreaterThan(maxShare) {
			res.Violations = append(res.Violations, ev)
		}
	}

	res.IsCompliant = len(res.Violations) == 0
	res.Verdict = domain.ConsistencyCompliant
	if !res.IsCompliant {
		res.Verdict = domain.ConsistencyNonCompliant
	}
	return res
}
