package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/revert"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Reconstruct the pre-fix draft from a final document and its fixes",
	Long: `Undoes recorded compliance fixes, newest first, and prints a word-level diff per changed field.

Pass either --report (the JSON written by "run --report") or both --final and --fixes.`,
	RunE: runRevert,
}

var (
	revertReport string
	revertFinal  string
	revertFixes  string
	revertOutput string
	revertVerify bool
	revertDiff   bool
)

func init() {
	revertCmd.Flags().StringVar(&revertReport, "report", "", "Run report holding the final document and its fixes")
	revertCmd.Flags().StringVar(&revertFinal, "final", "", "Path to the final document JSON")
	revertCmd.Flags().StringVar(&revertFixes, "fixes", "", "Path to a JSON array of auto-fix records")
	revertCmd.Flags().StringVarP(&revertOutput, "output", "o", "", "Write the reconstructed draft here (default stdout)")
	revertCmd.Flags().BoolVar(&revertVerify, "verify", false, "Fail unless reapplying the fixes reproduces the final document")
	revertCmd.Flags().BoolVar(&revertDiff, "diff", false, "Print unified diffs of every changed field to stderr")
	revertCmd.MarkFlagsMutuallyExclusive("report", "final")
	revertCmd.MarkFlagsMutuallyExclusive("report", "fixes")
	revertCmd.MarkFlagsRequiredTogether("final", "fixes")

	rootCmd.AddCommand(revertCmd)
}

// revertRunReport is the subset of a run report revert needs
type revertRunReport struct {
	Final      *types.Document `json:"final"`
	Compliance struct {
		AutoFixes []types.AutoFix `json:"auto_fixes"`
	} `json:"compliance"`
}

// loadRevertInputs reads the final document and fixes from either input form
func loadRevertInputs() (*types.Document, []types.AutoFix, error) {
	if revertReport != "" {
		var report revertRunReport
		if err := readJSON(revertReport, &report); err != nil {
			return nil, nil, err
		}
		if report.Final == nil {
			return nil, nil, fmt.Errorf("report %s has no final document", revertReport)
		}
		return report.Final, report.Compliance.AutoFixes, nil
	}
	if revertFinal == "" {
		return nil, nil, fmt.Errorf("either --report or --final and --fixes must be provided")
	}

	final, err := document.LoadFile(revertFinal)
	if err != nil {
		return nil, nil, err
	}
	var fixes []types.AutoFix
	if err := readJSON(revertFixes, &fixes); err != nil {
		return nil, nil, err
	}
	return final, fixes, nil
}

func runRevert(cmd *cobra.Command, _ []string) error {
	final, fixes, err := loadRevertInputs()
	if err != nil {
		return err
	}

	raw, report, err := revert.Revert(final, fixes)
	if err != nil {
		return err
	}
	if revertVerify {
		if err := revert.VerifyRoundTrip(final, fixes); err != nil {
			return err
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), revertOutput, raw); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, skipped := range report.Skipped {
		_, _ = fmt.Fprintf(stderr, "skipped %s (%s): %s\n", skipped.FixID, skipped.FieldPath, skipped.Reason)
	}
	if revertDiff {
		diffs, err := revert.Diff(raw, final)
		if err != nil {
			return err
		}
		for _, d := range diffs {
			_, _ = fmt.Fprint(stderr, d.Unified)
		}
	}
	_, _ = fmt.Fprintf(stderr, "%d fix(es) reverted, %d skipped\n", len(report.Reverted), len(report.Skipped))
	return nil
}
