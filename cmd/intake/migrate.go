package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Create the users, profiles and submissions tables and their indexes. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck
		return migrate(cmd.Context(), cfg.DatabaseURL, log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(ctx context.Context, databaseURL string, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	return database.Migrate(ctx, log)
}
