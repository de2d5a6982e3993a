package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("side %q: %w", s, ErrInvalidQuote)
	}
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// DepthLevel is one resting quote in the book.
type DepthLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// DepthSnapshot is an immutable view of one instrument's book at an instant.
// Bids are ordered by descending price and asks by ascending price.
type DepthSnapshot struct {
	InstrumentID string       `json:"instrument_id"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	Timestamp    time.Time    `json:"timestamp"`
}

// NewDepthSnapshot validates the level invariants and returns a snapshot
// holding its own copies of bids and asks. Levels must already be ordered.
func NewDepthSnapshot(instrumentID string, bids, asks []DepthLevel, ts time.Time) (DepthSnapshot, error) {
	if strings.TrimSpace(instrumentID) == "" {
		return DepthSnapshot{}, fmt.Errorf("instrument id required: %w", ErrInvalidDepth)
	}
	if err := validateSide(bids, true); err != nil {
		return DepthSnapshot{}, fmt.Errorf("bids: %w", err)
	}
	if err := validateSide(asks, false); err != nil {
		return DepthSnapshot{}, fmt.Errorf("asks: %w", err)
	}
	if len(bids) > 0 && len(asks) > 0 && bids[0].Price.GreaterThanOrEqual(asks[0].Price) {
		return DepthSnapshot{}, fmt.Errorf("crossed book: bid %s >= ask %s: %w",
			bids[0].Price, asks[0].Price, ErrInvalidDepth)
	}

	return DepthSnapshot{
		InstrumentID: instrumentID,
		Bids:         append([]DepthLevel(nil), bids...),
		Asks:         append([]DepthLevel(nil), asks...),
		Timestamp:    ts,
	}, nil
}

func validateSide(levels []DepthLevel, descending bool) error {
	for i, lvl := range levels {
		if !lvl.Price.IsPositive() {
			return fmt.Errorf("level %d: price %s must be > 0: %w", i, lvl.Price, ErrInvalidDepth)
		}
		if lvl.Size.IsNegative() {
			return fmt.Errorf("level %d: size %s must be >= 0: %w", i, lvl.Size, ErrInvalidDepth)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if descending && !lvl.Price.LessThan(prev) {
			return fmt.Errorf("level %d: price %s not below %s: %w", i, lvl.Price, prev, ErrInvalidDepth)
		}
		if !descending && !lvl.Price.GreaterThan(prev) {
			return fmt.Errorf("level %d: price %s not above %s: %w", i, lvl.Price, prev, ErrInvalidDepth)
		}
	}
	return nil
}

// Opposing returns the side of the book an order of the given side consumes:
// asks for a buy, bids for a sell.
func (s DepthSnapshot) Opposing(side Side) []DepthLevel {
	if side == SideSell {
		return s.Bids
	}
	return s.Asks
}

// BestBid returns the highest bid, if any.
func (s DepthSnapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the lowest ask, if any.
func (s DepthSnapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// Mid returns the midpoint of the best bid and ask when both exist.
func (s DepthSnapshot) Mid() (decimal.Decimal, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Spread returns best ask minus best bid when both exist.
func (s DepthSnapshot) Spread() (decimal.Decimal, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Age is the time elapsed since the snapshot was taken.
func (s DepthSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
