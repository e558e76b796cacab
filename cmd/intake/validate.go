package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/eligibility-intake/internal/observability"
	"github.com/jonathan/eligibility-intake/internal/schemas"
	"github.com/jonathan/eligibility-intake/internal/webhook"
)

var validateJSONPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a notification envelope against its schema",
	Long:  `Check a JSON notification envelope, such as a captured webhook body, against the embedded envelope schema.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.OutOrStdout(), validateJSONPath, verbose)
	},
	SilenceUsage: true,
}

func init() {
	validateCmd.Flags().StringVar(&validateJSONPath, "json", "", "Path to the envelope JSON file")
	_ = validateCmd.MarkFlagRequired("json")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(out io.Writer, path string, summary bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := schemas.ValidateEnvelope(payload); err != nil {
		fmt.Fprintf(out, "Validation failed: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "Validation passed")

	if summary {
		var env webhook.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("failed to decode envelope: %w", err)
		}
		observability.NewPrinter(out).PrintEnvelope(&env)
	}
	return nil
}
