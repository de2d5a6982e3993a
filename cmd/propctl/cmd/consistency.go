package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyprop/internal/risk"
)

var consistencyCmd = &cobra.Command{
	Use:   "consistency EVENT=PROFIT...",
	Short: "Check profit concentration across events",
	Long: `Consistency reports the share of the required profit earned on each event
and flags events above the maximum share.

Example:
  propctl consistency --required 10000 --max 0.4 A=4000 B=6000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConsistency,
}

var (
	conRequired string
	conMax      string
)

func init() {
	rootCmd.AddCommand(consistencyCmd)

	consistencyCmd.Flags().StringVar(&conRequired, "required", "", "required profit for the stage (required)")
	consistencyCmd.Flags().StringVar(&conMax, "max", risk.DefaultRules().ConsistencyLimit.String(), "maximum share per event")

	consistencyCmd.MarkFlagRequired("required")
}

func runConsistency(cmd *cobra.Command, args []string) error {
	profits, err := parseEventProfits(args)
	if err != nil {
		return err
	}
	required, err := decimal.NewFromString(conRequired)
	if err != nil {
		return fmt.Errorf("required %q: %w", conRequired, err)
	}
	maxShare, err := decimal.NewFromString(conMax)
	if err != nil {
		return fmt.Errorf("max %q: %w", conMax, err)
	}
	return printJSON(cmd.OutOrStdout(), risk.CheckConsistency(profits, required, maxShare))
}

// parseEventProfits reads EVENT=PROFIT pairs. Repeated events accumulate.
func parseEventProfits(args []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(args))
	for _, arg := range args {
		event, amount, ok := strings.Cut(arg, "=")
		event = strings.TrimSpace(event)
		if !ok || event == "" {
			return nil, fmt.Errorf("argument %q: want EVENT=PROFIT", arg)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		out[event] = out[event].Add(d)
	}
	return out, nil
}
