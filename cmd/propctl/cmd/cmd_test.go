package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// run executes the root command. Commands share package-level flag state,
// so these tests do not run in parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const testBook = `{
  "market": "0xabc",
  "asset_id": "tok-1",
  "timestamp": "1767225600000",
  "bids": [{"price": "0.48", "size": "200"}, {"price": "0.50", "size": "100"}],
  "asks": [{"price": "0.55", "size": "100"}, {"price": "0.52", "size": "100"}]
}`

func TestEstimate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, os.WriteFile(path, []byte(testBook), 0o600))

	out, err := run(t, "estimate", "--book", path, "--side", "buy", "--qty", "150")
	require.NoError(t, err)

	var est struct {
		InstrumentID     string `json:"instrument_id"`
		AvgPrice         string `json:"avg_price"`
		FillableQuantity string `json:"fillable_quantity"`
		IsPartial        bool   `json:"is_partial"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.Equal(t, "tok-1", est.InstrumentID)
	assert.Equal(t, "0.53", est.AvgPrice)
	assert.Equal(t, "150", est.FillableQuantity)
	assert.False(t, est.IsPartial)

	_, err = run(t, "estimate", "--book", path, "--side", "hold", "--qty", "1")
	assert.Error(t, err)
}

func TestPayout(t *testing.T) {
	out, err := run(t, "payout", "--gross", "125", "--split", "0.8", "--min", "100", "--status", "PARTNER")
	require.NoError(t, err)
	assert.Contains(t, out, `"is_eligible": true`)
	assert.Contains(t, out, `"net_payout": "100"`)

	out, err = run(t, "payout", "--gross", "100", "--split", "0.8", "--min", "100", "--status", "PARTNER")
	require.NoError(t, err)
	assert.Contains(t, out, `"BELOW_MINIMUM"`)

	_, err = run(t, "payout", "--gross", "100", "--status", "GOLD")
	assert.Error(t, err)
}

func TestConsistency(t *testing.T) {
	out, err := run(t, "consistency", "--required", "10000", "--max", "0.4", "A=4000", "B=6000")
	require.NoError(t, err)
	assert.Contains(t, out, `"verdict": "NON_COMPLIANT"`)
	assert.Contains(t, out, `"largest_event": "B"`)
}

func TestParseEventProfits(t *testing.T) {
	got, err := parseEventProfits([]string{"A=100", "B=-20", "A=50.5"})
	require.NoError(t, err)
	assert.Equal(t, "150.5", got["A"].String())
	assert.Equal(t, "-20", got["B"].String())

	for _, bad := range []string{"A", "=5", "A=ten"} {
		_, err := parseEventProfits([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestTiers(t *testing.T) {
	out, err := run(t, "tiers")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "TIER_10K")
	assert.Contains(t, lines[1], "1500")
	assert.Contains(t, lines[1], "9200")
}

func TestHashKey(t *testing.T) {
	key := "pp_live_0123456789abcdef"
	out, err := run(t, "hash-key", "--cost", "4", key)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte(key)))

	_, err = run(t, "hash-key", "short")
	assert.Error(t, err)
}

func TestMigrateList(t *testing.T) {
	out, err := run(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Equal(t, "001_accounts.sql\n002_ledger.sql\n003_audit.sql\n", out)
}
