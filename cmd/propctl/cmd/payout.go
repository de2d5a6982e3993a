package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

var payoutCmd = &cobra.Command{
	Use:   "payout",
	Short: "Calculate the payout split for a gross profit",
	Long: `Payout applies the profit split and the minimum payout to a gross profit
for an account in the given status.

Example:
  propctl payout --gross 125 --split 0.8 --min 100 --status PARTNER`,
	RunE: runPayout,
}

var (
	payGross  string
	paySplit  string
	payMin    string
	payStatus string
)

func init() {
	rootCmd.AddCommand(payoutCmd)

	defaults := risk.DefaultRules()
	payoutCmd.Flags().StringVar(&payGross, "gross", "", "gross profit (required)")
	payoutCmd.Flags().StringVar(&paySplit, "split", defaults.TraderSplit.String(), "trader share of profit")
	payoutCmd.Flags().StringVar(&payMin, "min", defaults.MinPayout.String(), "minimum net payout")
	payoutCmd.Flags().StringVar(&payStatus, "status", string(domain.StatusPartner), "account status")

	payoutCmd.MarkFlagRequired("gross")
}

func runPayout(cmd *cobra.Command, args []string) error {
	vals := make([]decimal.Decimal, 3)
	for i, in := range []struct{ name, v string }{{"gross", payGross}, {"split", paySplit}, {"min", payMin}} {
		d, err := decimal.NewFromString(in.v)
		if err != nil {
			return fmt.Errorf("%s %q: %w", in.name, in.v, err)
		}
		vals[i] = d
	}
	status := domain.AccountStatus(payStatus)
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", payStatus, domain.ErrInvalidAccount)
	}
	return printJSON(cmd.OutOrStdout(), risk.CalculatePayout(vals[0], vals[1], vals[2], status))
}
