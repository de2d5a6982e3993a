package risk

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerScale is the number of decimal places the ledger stores for amounts.
// Finer amounts would be rounded on write and disagree with the equity the
// engine evaluated.
const LedgerScale = 8

// ValidateTrade checks the fields a settled trade must carry.
func ValidateTrade(t domain.Trade) error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"quantity", t.Quantity},
		{"requested price", t.RequestedPrice},
		{"estimated fill price", t.EstimatedFillPrice},
		{"realized pnl", t.RealizedPnL},
		{"fee", t.Fee},
	} {
		if !f.v.Equal(f.v.Truncate(LedgerScale)) {
			return fmt.Errorf("risk: trade: %s %s has more than %d decimal places: %w",
				f.name, f.v, LedgerScale, domain.ErrInvalidTrade)
		}
	}

	switch {
	case strings.TrimSpace(t.InstrumentID) == "":
		return fmt.Errorf("risk: trade: instrument id required: %w", domain.ErrInvalidTrade)
	case strings.TrimSpace(t.EventID) == "":
		return fmt.Errorf("risk: trade: event id required: %w", domain.ErrInvalidTrade)
	case !t.Side.Valid():
		return fmt.Errorf("risk: trade: side %q: %w", t.Side, domain.ErrInvalidTrade)
	case !t.Quantity.IsPositive():
		return fmt.Errorf("risk: trade: quantity %s must be > 0: %w", t.Quantity, domain.ErrInvalidTrade)
	case t.Fee.IsNegative():
		return fmt.Errorf("risk: trade: fee %s negative: %w", t.Fee, domain.ErrInvalidTrade)
	}
	return nil
}

// ApplyTrade folds one settled trade into acct: equity moves by the trade's
// net PnL, the event's profit and the trade counters are updated, and the
// instrument joins the unique set. Drawdown is re-evaluated on the result.
func ApplyTrade(acct domain.Account, t domain.Trade) (domain.Account, domain.DrawdownStatus, error) {
	if acct.Status == domain.StatusBreached {
		return acct, Drawdown(acct), NewBreachedAccountError(acct)
	}
	if err := ValidateTrade(t); err != nil {
		return acct, Drawdown(acct), err
	}

	net := t.NetPnL()
	next := acct.Clone()
	next.EventProfits[t.EventID] = next.EventProfits[t.EventID].Add(net)
	next.TotalTrades++
	if net.IsPositive() {
		next.WinningTrades++
	}
	next.AddInstrument(t.InstrumentID)

	return UpdateEquity(next, acct.CurrentEquity.Add(net))
}
