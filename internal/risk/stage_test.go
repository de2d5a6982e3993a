package risk

import (
	"fmt"
	"testing"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stageAccount returns a 10K stage-1 account at equity with n instruments
// and the given event profits.
func stageAccount(t *testing.T, equity string, n int, profits map[string]string) domain.Account {
	t.Helper()
	acct := newAccount(t, domain.Tier10K, domain.Addons{})
	acct.CurrentEquity = dec(equity)
	acct.HighWaterMark = decimal.Max(acct.HighWaterMark, acct.CurrentEquity)
	for i := 0; i < n; i++ {
		acct.AddInstrument(fmt.Sprintf("tok-%02d", i))
	}
	for k, v := range profits {
		acct.EventProfits[k] = dec(v)
	}
	return acct
}

var spreadProfits = map[string]string{"e1": "500", "e2": "500", "e3": "500"}

func TestEvaluateStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		equity   string
		n        int
		profits  map[string]string
		next     domain.AccountStatus
		blockers []domain.StageBlocker
		percent  string
	}{
		{
			name:    "passes at exact target",
			equity:  "11500",
			n:       10,
			profits: spreadProfits,
			next:    domain.StatusStage1Passed,
			percent: "100",
		},
		{
			name:     "one contract short",
			equity:   "11500",
			n:        9,
			profits:  spreadProfits,
			next:     domain.StatusStage1InProgress,
			blockers: []domain.StageBlocker{domain.BlockerMinContracts},
			percent:  "100",
		},
		{
			name:     "target not met",
			equity:   "10750",
			n:        12,
			profits:  map[string]string{"e1": "250", "e2": "250", "e3": "250"},
			next:     domain.StatusStage1InProgress,
			blockers: []domain.StageBlocker{domain.BlockerProfitTarget},
			percent:  "50",
		},
		{
			name:     "concentrated profit",
			equity:   "11600",
			n:        10,
			profits:  map[string]string{"e1": "1200", "e2": "400"},
			next:     domain.StatusStage1InProgress,
			blockers: []domain.StageBlocker{domain.BlockerConsistencyViolation},
			percent:  "100",
		},
		{
			name:     "losing account clamps progress at zero",
			equity:   "9500",
			n:        2,
			next:     domain.StatusStage1InProgress,
			blockers: []domain.StageBlocker{domain.BlockerProfitTarget, domain.BlockerMinContracts},
			percent:  "0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			acct := stageAccount(t, tc.equity, tc.n, tc.profits)

			eval := EvaluateStage(acct, DefaultRules())

			assert.Equal(t, tc.next, eval.Next)
			assert.Equal(t, tc.next != acct.Status, eval.Transitioned)
			if tc.blockers == nil {
				assert.Empty(t, eval.Blockers)
			} else {
				assert.Equal(t, tc.blockers, eval.Blockers)
			}
			assertDec(t, tc.percent, eval.Progress.ProgressPercent, "percent")
			assertDec(t, "1500", eval.Progress.ProfitRequired)
			assertDec(t, "11500", eval.Progress.TargetBalance)
			assert.Equal(t, tc.n, eval.UniqueInstruments)
		})
	}
}

func TestEvaluateStageIgnoresFrozenAndTerminalStates(t *testing.T) {
	t.Parallel()

	for _, st := range []domain.AccountStatus{
		domain.StatusStage1Passed, domain.StatusStage2Passed, domain.StatusPartner, domain.StatusBreached,
	} {
		acct := stageAccount(t, "11500", 10, spreadProfits)
		acct.Status = st

		eval := EvaluateStage(acct, DefaultRules())
		assert.False(t, eval.Transitioned, st)
		assert.Equal(t, st, eval.Next)
		assert.Empty(t, eval.Blockers)
	}
}

func TestTwoStageLifecycle(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	acct := stageAccount(t, "11500", 10, spreadProfits)

	acct, eval := Advance(acct, rules, testNow)
	require.True(t, eval.Transitioned)
	require.Equal(t, domain.StatusStage1Passed, acct.Status)
	require.NotNil(t, acct.Stage1PassedAt)

	_, err := PromoteToPartner(acct)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	acct, err = BeginStage2(acct)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStage2InProgress, acct.Status)
	assertDec(t, "11500", acct.StageStartBalance)
	assert.Empty(t, acct.EventProfits)
	assert.Zero(t, acct.UniqueInstruments())

	_, err = BeginStage2(acct)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Stage 2 target is 10% of 11500.
	acct.CurrentEquity = dec("12650")
	acct.HighWaterMark = dec("12650")
	for i := 0; i < 10; i++ {
		acct.AddInstrument(fmt.Sprintf("s2-%d", i))
	}
	for _, ev := range []string{"a", "b", "c"} {
		acct.EventProfits[ev] = dec("383.33")
	}

	acct, eval = Advance(acct, rules, testNow)
	assertDec(t, "1150", eval.Progress.ProfitRequired)
	require.Equal(t, domain.StatusStage2Passed, acct.Status, eval.Blockers)
	require.NotNil(t, acct.Stage2PassedAt)

	acct, err = PromoteToPartner(acct)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartner, acct.Status)
}

func TestExpressPassStartsInStage2(t *testing.T) {
	t.Parallel()

	acct := newAccount(t, domain.Tier75K, domain.Addons{ExpressPass: true})
	assert.Equal(t, domain.StatusStage2InProgress, acct.Status)

	eval := EvaluateStage(acct, DefaultRules())
	assert.Equal(t, 2, eval.Progress.Stage)
	assertDec(t, "7500", eval.Progress.ProfitRequired)
}

func TestEvaluateStageKeepsTargetOfBreachedStage(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	express := newAccount(t, domain.Tier10K, domain.Addons{ExpressPass: true})
	express, st, err := UpdateEquity(express, dec("9000"))
	require.NoError(t, err)
	require.True(t, st.IsBreached)

	eval := EvaluateStage(express, rules)
	assert.Equal(t, 2, eval.Progress.Stage)
	assertDec(t, "0.10", eval.Progress.TargetFraction)

	promoted := newAccount(t, domain.Tier10K, domain.Addons{})
	passed := testNow
	promoted.Stage1PassedAt = &passed
	promoted.Status = domain.StatusStage2InProgress
	promoted, _, err = UpdateEquity(promoted, dec("9100"))
	require.NoError(t, err)

	eval = EvaluateStage(promoted, rules)
	assert.Equal(t, domain.StatusBreached, eval.Current)
	assert.Equal(t, 2, eval.Progress.Stage)
	assertDec(t, "1000", eval.Progress.ProfitRequired)

	fresh := newAccount(t, domain.Tier10K, domain.Addons{})
	fresh, _, err = UpdateEquity(fresh, dec("9000"))
	require.NoError(t, err)

	eval = EvaluateStage(fresh, rules)
	assert.Equal(t, 1, eval.Progress.Stage)
	assertDec(t, "0.15", eval.Progress.TargetFraction)
}
