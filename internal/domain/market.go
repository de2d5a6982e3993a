package domain

import "github.com/shopspring/decimal"

// MarketInfo is the subset of venue market metadata used to decide whether
// an instrument is tradable in an evaluation.
type MarketInfo struct {
	MarketID     string          `json:"market_id"`
	InstrumentID string          `json:"instrument_id"`
	Question     string          `json:"question"`
	Volume       decimal.Decimal `json:"volume"`
	Active       bool            `json:"active"`
	Closed       bool            `json:"closed"`
}

// Qualified reports whether the market is open and meets the volume floor.
func (m MarketInfo) Qualified(minVolume decimal.Decimal) bool {
	return m.Active && !m.Closed && m.Volume.GreaterThanOrEqual(minVolume)
}
