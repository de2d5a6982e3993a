package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one settled execution in an account's append-only ledger. It is
// never mutated after creation; corrections are new offsetting trades.
type Trade struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"account_id"`
	Sequence           int64           `json:"sequence"`
	InstrumentID       string          `json:"instrument_id"`
	EventID            string          `json:"event_id"`
	Side               Side            `json:"side"`
	Quantity           decimal.Decimal `json:"quantity"`
	RequestedPrice     decimal.Decimal `json:"requested_price"`
	EstimatedFillPrice decimal.Decimal `json:"estimated_fill_price"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
	Fee                decimal.Decimal `json:"fee"`
	EquityAfter        decimal.Decimal `json:"equity_after"`
	Timestamp          time.Time       `json:"timestamp"`
}

// NetPnL is realized PnL after fees.
func (t Trade) NetPnL() decimal.Decimal {
	return t.RealizedPnL.Sub(t.Fee)
}
