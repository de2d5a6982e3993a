package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "propctl",
	Short: "Operator tooling for the polyprop evaluation service",
	Long: `propctl runs the evaluation rules offline and performs operator tasks.

  estimate     fill estimate against a saved CLOB book
  payout       payout split for a gross profit
  consistency  profit concentration across events
  tiers        the tier table and default rules
  hash-key     bcrypt hash for server.api_key_hashes
  migrate      apply the embedded database migrations`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
