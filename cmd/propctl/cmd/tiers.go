package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyprop/internal/risk"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the tier table with the default stage 1 target and starting floor",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := risk.DefaultRules()
		keep := decimal.NewFromInt(1).Sub(rules.DrawdownLimit)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIER\tNAME\tACCOUNT SIZE\tMONTHLY\tSTAGE 1 PROFIT\tSTARTING FLOOR")
		for _, tc := range risk.Tiers() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				tc.Tier, tc.Name,
				tc.AccountSize.StringFixed(0),
				tc.MonthlyPrice.StringFixed(0),
				tc.AccountSize.Mul(rules.ProfitTargetStage1).StringFixed(0),
				tc.AccountSize.Mul(keep).StringFixed(0),
			)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}
