package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/listing-copy-guard/internal/constraints"
	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/observability"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

var truncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Truncate every field to its channel's hard character limit",
	RunE:  runTruncate,
}

var (
	truncateInput  string
	truncateOutput string
)

func init() {
	truncateCmd.Flags().StringVarP(&truncateInput, "input", "i", "", "Path to the document JSON (required)")
	truncateCmd.Flags().StringVarP(&truncateOutput, "output", "o", "", "Write the truncated document and records here (default stdout)")
	_ = truncateCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(truncateCmd)
}

// truncateReport is the truncate command's output
type truncateReport struct {
	Document   *types.Document             `json:"document"`
	Violations []types.ConstraintViolation `json:"violations"`
}

func runTruncate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	doc, err := document.LoadFile(truncateInput)
	if err != nil {
		return err
	}

	out, records := constraints.Enforce(doc, pol)
	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintConstraints(records)
	}
	if records == nil {
		records = []types.ConstraintViolation{}
	}
	if err := writeJSON(cmd.OutOrStdout(), truncateOutput, truncateReport{Document: out, Violations: records}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d field(s) truncated\n", len(records))
	return nil
}
