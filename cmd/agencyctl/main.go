package main

import (
	"fmt"
	"os"

	"agency_tracker/internal/config"
	"agency_tracker/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "agencyctl",
		Short:   "Maintenance commands for the agency tracker",
		Version: Version,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rotateCodeCmd())
	rootCmd.AddCommand(markOverdueCmd())
	rootCmd.AddCommand(invoiceTotalCmd())
	rootCmd.AddCommand(hashKeyCmd())
	rootCmd.AddCommand(seedDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	db, err := database.Initialize(cfg.DatabaseURL, false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
