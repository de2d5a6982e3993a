package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/config"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

func TestRulesFromConfigDefaults(t *testing.T) {
	t.Parallel()

	got, err := RulesFromConfig(config.Defaults().Rules)
	require.NoError(t, err)
	want := risk.DefaultRules()

	pairs := map[string][2]string{
		"drawdown":    {got.DrawdownLimit.String(), want.DrawdownLimit.String()},
		"shield":      {got.DrawdownShieldLimit.String(), want.DrawdownShieldLimit.String()},
		"stage1":      {got.ProfitTargetStage1.String(), want.ProfitTargetStage1.String()},
		"stage2":      {got.ProfitTargetStage2.String(), want.ProfitTargetStage2.String()},
		"consistency": {got.ConsistencyLimit.String(), want.ConsistencyLimit.String()},
		"split":       {got.TraderSplit.String(), want.TraderSplit.String()},
		"min_payout":  {got.MinPayout.String(), want.MinPayout.String()},
		"warning_at":  {got.WarningAt.String(), want.WarningAt.String()},
		"danger_at":   {got.DangerAt.String(), want.DangerAt.String()},
	}
	for name, p := range pairs {
		assert.Equal(t, p[1], p[0], name)
	}
	assert.Equal(t, want.MinContracts, got.MinContracts)
	assert.Equal(t, want.PayoutCooldown, got.PayoutCooldown)
}

func TestRulesFromConfigRejectsBadFractions(t *testing.T) {
	t.Parallel()

	rc := config.Defaults().Rules
	rc.DrawdownLimit = 1.5
	_, err := RulesFromConfig(rc)
	assert.Error(t, err)
}

func TestQuoteConfigFromConfig(t *testing.T) {
	t.Parallel()

	qc := QuoteConfigFromConfig(config.Defaults().Quote)
	assert.Equal(t, 2*time.Second, qc.MaxBookAge)
	assert.Equal(t, "0.02", qc.MaxSlippage.String())
	assert.Equal(t, "500000", qc.MinMarketVolume.String())
	assert.Equal(t, 30, qc.RateLimit)
}

func TestNeedsS3(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Archive.Enabled = false
	cfg.Mode = "server"
	assert.False(t, needsS3(&cfg))
	cfg.Mode = "ARCHIVE"
	assert.True(t, needsS3(&cfg))
	cfg.Mode = "full"
	cfg.Archive.Enabled = true
	assert.True(t, needsS3(&cfg))
}
