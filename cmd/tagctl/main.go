package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foresafe/foresafe/internal/config"
)

func main() {
	// Flags still override anything set in .env.
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "tagctl:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tagctl: load config:", err)
		os.Exit(1)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	var dbPath string

	rootCmd := &cobra.Command{
		Use:          "tagctl",
		Short:        "FORESAFE tag inventory tools",
		Long:         `tagctl generates, imports and exports FORESAFE tag inventories against the service database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "Path to the SQLite database")

	rootCmd.AddCommand(
		newGenerateCommand(cfg),
		newAddCommand(&dbPath),
		newImportCommand(&dbPath),
		newExportCommand(cfg, &dbPath),
		newStatsCommand(&dbPath),
	)

	return rootCmd
}
