package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/platform/polymarket"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate a fill against a CLOB book saved as JSON",
	Long: `Estimate walks the opposing side of a saved order book and reports the
average price, slippage and liquidity consumed for the requested quantity.

The book file has the shape returned by the CLOB /book endpoint.

Example:
  propctl estimate --book book.json --side buy --qty 150`,
	RunE: runEstimate,
}

var (
	estBookPath string
	estSide     string
	estQty      string
)

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVar(&estBookPath, "book", "", "path to CLOB book JSON (required)")
	estimateCmd.Flags().StringVar(&estSide, "side", "buy", "order side (buy, sell)")
	estimateCmd.Flags().StringVar(&estQty, "qty", "", "order quantity in contracts (required)")

	estimateCmd.MarkFlagRequired("book")
	estimateCmd.MarkFlagRequired("qty")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	snap, err := readBook(estBookPath)
	if err != nil {
		return err
	}
	side, err := domain.ParseSide(estSide)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(estQty)
	if err != nil {
		return fmt.Errorf("qty %q: %w", estQty, err)
	}
	est, err := risk.EstimateFill(snap, side, qty)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), est)
}

func readBook(path string) (domain.DepthSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("read book: %w", err)
	}
	var book polymarket.BookResponse
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("decode book %s: %w", path, err)
	}
	return book.ToDomain(book.AssetID, time.Now())
}
