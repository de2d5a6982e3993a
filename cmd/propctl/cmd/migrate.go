package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyprop/internal/app"
	"github.com/alanyoungcy/polyprop/internal/config"
	"github.com/alanyoungcy/polyprop/internal/store/postgres"
)

var (
	migrateConfig string
	migrateList   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	Long: `Migrate connects with the postgres section of the configuration file and
applies every embedded migration that has not run yet.

Example:
  propctl migrate --config config.toml
  propctl migrate --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateList {
			names, err := postgres.MigrationNames()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}

		cfg, err := config.Load(migrateConfig)
		if err != nil {
			return err
		}
		pc := cfg.Postgres
		pc.RunMigrations = true
		client, err := app.OpenPostgres(cmd.Context(), pc)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		client.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateConfig, "config", "config.toml", "path to configuration file")
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "list embedded migrations without connecting")
}
