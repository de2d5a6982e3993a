package risk

import (
	"testing"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultRules().Validate())
}

func TestRulesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"zero drawdown", func(r *Rules) { r.DrawdownLimit = dec("0") }},
		{"full drawdown", func(r *Rules) { r.DrawdownLimit = dec("1") }},
		{"split above one", func(r *Rules) { r.TraderSplit = dec("1.1") }},
		{"warning above danger", func(r *Rules) { r.WarningAt = dec("0.9") }},
		{"negative contracts", func(r *Rules) { r.MinContracts = -1 }},
		{"negative min payout", func(r *Rules) { r.MinPayout = dec("-1") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := DefaultRules()
			tc.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestTiers(t *testing.T) {
	t.Parallel()

	all := Tiers()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].AccountSize.GreaterThan(all[i-1].AccountSize))
	}

	tc, ok := LookupTier(domain.Tier100K)
	require.True(t, ok)
	assertDec(t, "100000", tc.AccountSize)
	assertDec(t, "500", tc.MonthlyPrice)

	_, ok = LookupTier("TIER_1M")
	assert.False(t, ok)
}

func TestOpenAccount(t *testing.T) {
	t.Parallel()

	acct := newAccount(t, domain.Tier50K, domain.Addons{})
	assert.Equal(t, domain.StatusStage1InProgress, acct.Status)
	assertDec(t, "50000", acct.StartingBalance)
	assertDec(t, "50000", acct.HighWaterMark)
	assertDec(t, "50000", acct.StageStartBalance)
	assertDec(t, "0.08", acct.DrawdownLimit)
	assert.Equal(t, testNow, acct.CreatedAt)

	_, err := OpenAccount("x", "t", "TIER_BOGUS", domain.Addons{}, DefaultRules(), testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)

	_, err = OpenAccount("", "t", domain.Tier10K, domain.Addons{}, DefaultRules(), testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}
