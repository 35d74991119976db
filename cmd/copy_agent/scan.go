package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/observability"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report fair-housing violations in a draft without changing it",
	RunE:  runScan,
}

var (
	scanInput  string
	scanOutput string
	scanStrict bool
)

func init() {
	scanCmd.Flags().StringVarP(&scanInput, "input", "i", "", "Path to the draft document JSON (required)")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the violations here (default stdout)")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Exit with an error when any hard violation is found")
	_ = scanCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scanCmd)
}

// scanReport is the scan command's output
type scanReport struct {
	Jurisdiction string               `json:"jurisdiction"`
	Violations   []types.Violation    `json:"violations"`
	Failures     []types.FieldFailure `json:"failures,omitempty"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	doc, err := document.LoadFile(scanInput)
	if err != nil {
		return err
	}

	collab, err := newCollaborators(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer collab.Close()

	judgeTimeout, _, _ := cfg.Timeouts()
	scanner, err := compliance.NewScanner(pol,
		compliance.WithJudge(collab.Judge),
		compliance.WithJudgeTimeout(judgeTimeout),
		compliance.WithConcurrency(cfg.Concurrency),
		compliance.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	result, err := scanner.Scan(cmd.Context(), doc)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintViolations(result.Violations)
	}

	violations := result.Violations
	if violations == nil {
		violations = []types.Violation{}
	}
	if err := writeJSON(cmd.OutOrStdout(), scanOutput, scanReport{
		Jurisdiction: pol.Jurisdiction,
		Violations:   violations,
		Failures:     result.Failures,
	}); err != nil {
		return err
	}

	hard := 0
	for _, v := range violations {
		if v.IsHard() {
			hard++
		}
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d violation(s), %d hard\n", len(violations), hard)
	if scanStrict && hard > 0 {
		return fmt.Errorf("found %d hard violation(s)", hard)
	}
	return nil
}
