package risk

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, tier domain.Tier, addons domain.Addons) domain.Account {
	t.Helper()
	acct, err := OpenAccount("acct-1", "trader-1", tier, addons, DefaultRules(), testNow)
	require.NoError(t, err)
	return acct
}

func book(t *testing.T, bids, asks [][2]string) domain.DepthSnapshot {
	t.Helper()
	conv := func(in [][2]string) []domain.DepthLevel {
		out := make([]domain.DepthLevel, 0, len(in))
		for _, l := range in {
			out = append(out, domain.DepthLevel{Price: dec(l[0]), Size: dec(l[1])})
		}
		return out
	}
	snap, err := domain.NewDepthSnapshot("tok-1", conv(bids), conv(asks), testNow)
	require.NoError(t, err)
	return snap
}
