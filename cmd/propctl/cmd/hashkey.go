package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashCost int

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key KEY",
	Short: "Print the bcrypt hash of an API key for server.api_key_hashes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args[0]) < 16 {
			return fmt.Errorf("key must be at least 16 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), hashCost)
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
	hashKeyCmd.Flags().IntVar(&hashCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}
