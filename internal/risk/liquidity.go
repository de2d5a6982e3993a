package risk

import (
	"fmt"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// EstimateFill walks the opposing side of snap from the best price outward
// and reports the volume-weighted fill for quantity. Running out of depth
// yields a partial estimate, not an error.
func EstimateFill(snap domain.DepthSnapshot, side domain.Side, quantity decimal.Decimal) (domain.FillEstimate, error) {
	if !side.Valid() {
		return domain.FillEstimate{}, fmt.Errorf("risk: estimate fill: side %q: %w", side, domain.ErrInvalidQuote)
	}
	if !quantity.IsPositive() {
		return domain.FillEstimate{}, fmt.Errorf("risk: estimate fill: quantity %s must be > 0: %w", quantity, domain.ErrInvalidQuote)
	}

	est := domain.FillEstimate{
		InstrumentID:              snap.InstrumentID,
		Side:                      side,
		RequestedQuantity:         quantity,
		FillableQuantity:          decimal.Zero,
		AvgPrice:                  decimal.Zero,
		BestPrice:                 decimal.Zero,
		WorstPrice:                decimal.Zero,
		Notional:                  decimal.Zero,
		SlippageFraction:          decimal.Zero,
		LiquidityConsumedFraction: decimal.Zero,
	}

	levels := snap.Opposing(side)
	total := decimal.Zero
	for _, lvl := range levels {
		total = total.Add(lvl.Size)
	}
	if !total.IsPositive() {
		est.NoLiquidity = true
		est.IsPartial = true
		return est, nil
	}

	remaining := quantity
	filled := decimal.Zero
	notional := decimal.Zero
	for _, lvl := range levels {
		if !remaining.IsPositive() {
			break
		}
		if !lvl.Size.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, lvl.Size)
		if est.LevelsConsumed == 0 {
			est.BestPrice = lvl.Price
		}
		est.WorstPrice = lvl.Price
		est.LevelsConsumed++
		filled = filled.Add(take)
		notional = notional.Add(lvl.Price.Mul(take))
		remaining = remaining.Sub(take)
	}

	avg := notional.Div(filled)
	slip := avg.Sub(est.BestPrice)
	if side == domain.SideSell {
		slip = est.BestPrice.Sub(avg)
	}

	est.FillableQuantity = filled
	est.AvgPrice = avg
	est.Notional = notional
	est.SlippageFraction = decimal.Max(decimal.Zero, slip.Div(est.BestPrice))
	est.LiquidityConsumedFraction = filled.Div(total)
	est.IsPartial = filled.LessThan(quantity)
	return est, nil
}
