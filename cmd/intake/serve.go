package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/observability"
	"github.com/jonathan/eligibility-intake/internal/server"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP server",
	Long:  `Start an HTTP server that exposes the intake flow, the view stream and the submissions API.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if servePort != 0 {
		cfg.Port = servePort
	}
	if verbose {
		observability.NewPrinter(os.Stdout).PrintConfig(cfg)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if serveMigrate {
		if err := migrate(ctx, cfg.DatabaseURL, log); err != nil {
			return err
		}
	}

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("intake configured",
		zap.Int("port", cfg.Port),
		zap.Bool("webhook", cfg.WebhookURL != ""),
		zap.String("resume_policy", cfg.PendingResumePolicy))
	return srv.Start(ctx)
}
