package polymarket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// BookResponse is the body of GET /book?token_id=.
type BookResponse struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
}

// PriceLevel is a single bid/ask level. The API sends both fields as strings.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// ToDomain converts the book into a validated snapshot. The CLOB lists
// levels worst-first, so both sides are re-sorted best-first. fallback is
// used as the snapshot time when the response carries none.
func (b *BookResponse) ToDomain(instrumentID string, fallback time.Time) (domain.DepthSnapshot, error) {
	if instrumentID == "" {
		instrumentID = b.AssetID
	}
	bids, err := parseLevels(b.Bids)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(b.Asks)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("asks: %w", err)
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	return domain.NewDepthSnapshot(instrumentID, mergeLevels(bids), mergeLevels(asks), parseBookTime(b.Timestamp, fallback))
}

func parseLevels(in []PriceLevel) ([]domain.DepthLevel, error) {
	out := make([]domain.DepthLevel, 0, len(in))
	for _, lvl := range in {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", domain.ErrInvalidDepth, lvl.Price)
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: size %q", domain.ErrInvalidDepth, lvl.Size)
		}
		out = append(out, domain.DepthLevel{Price: price, Size: size})
	}
	return out, nil
}

// mergeLevels folds adjacent levels at the same price into one. Input must
// already be sorted.
func mergeLevels(in []domain.DepthLevel) []domain.DepthLevel {
	out := make([]domain.DepthLevel, 0, len(in))
	for _, lvl := range in {
		if n := len(out); n > 0 && out[n-1].Price.Equal(lvl.Price) {
			out[n-1].Size = out[n-1].Size.Add(lvl.Size)
			continue
		}
		out = append(out, lvl)
	}
	return out
}

// parseBookTime accepts unix milliseconds, unix seconds or RFC 3339.
func parseBookTime(s string, fallback time.Time) time.Time {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return fallback
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket is the subset of a Gamma market used here.
type APIMarket struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	ConditionID  string   `json:"conditionId"`
	Active       flexBool `json:"active"`
	Closed       flexBool `json:"closed"`
	Volume       string   `json:"volume"`
	VolumeNum    float64  `json:"volumeNum"`
	ClobTokenIDs string   `json:"clobTokenIds"` // JSON-encoded: e.g. "[\"123\",\"456\"]"
}

// TokenIDs decodes the JSON-encoded clobTokenIds field.
func (m *APIMarket) TokenIDs() []string {
	var ids []string
	if m.ClobTokenIDs == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// ToDomain converts the market as seen from one of its outcome tokens.
func (m *APIMarket) ToDomain(instrumentID string) domain.MarketInfo {
	vol, err := decimal.NewFromString(m.Volume)
	if err != nil {
		vol = decimal.NewFromFloat(m.VolumeNum)
	}
	return domain.MarketInfo{
		MarketID:     m.ID,
		InstrumentID: instrumentID,
		Question:     m.Question,
		Volume:       vol,
		Active:       bool(m.Active),
		Closed:       bool(m.Closed),
	}
}
