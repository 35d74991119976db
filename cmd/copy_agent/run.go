package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/observability"
	"github.com/jonathan/listing-copy-guard/internal/pipeline"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full compliance and quality pipeline over a draft",
	Long: `Runs every stage over one draft document: scan -> fix -> constrain -> score -> aggregate.

The draft is a JSON object of text fields, flat ("instagram.casual": "...") or nested.
Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runPipelineCmd,
}

var (
	runInput  string
	runOutput string
	runReport string
	runStrict bool
	runNested bool
)

func init() {
	runCommand.Flags().StringVarP(&runInput, "input", "i", "", "Path to the draft document JSON (required)")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Write the final document here (default stdout)")
	runCommand.Flags().StringVar(&runReport, "report", "", "Write the full run result (compliance, quality, diffs) here")
	runCommand.Flags().BoolVar(&runStrict, "strict", false, "Exit with an error unless the verdict is compliant")
	runCommand.Flags().BoolVar(&runNested, "nested", false, "Write the final document as nested objects instead of flat dotted paths")
	_ = runCommand.MarkFlagRequired("input")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

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
	doc, err := document.LoadFile(runInput)
	if err != nil {
		return err
	}

	collab, err := newCollaborators(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer collab.Close()

	deps := pipeline.Dependencies{
		Judge:    collab.Judge,
		Rewriter: collab.Rewriter,
		Model:    collab.Model,
		Logger:   logger,
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		deps.Store = store
	}
	if cfg.Verbose {
		deps.Printer = observability.NewPrinter(cmd.ErrOrStderr())
	}

	opts := pipelineOptions(cfg)
	opts.OnProgress = func(event pipeline.ProgressEvent) {
		logger.Debug("stage completed", zap.String("step", event.Step), zap.String("message", event.Message))
	}

	result, err := pipeline.New(deps, opts).Run(ctx, doc, pol)
	if err != nil {
		return err
	}

	var final any = result.Final
	if runNested {
		if final, err = document.Unflatten(result.Final); err != nil {
			return err
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), runOutput, final); err != nil {
		return err
	}
	if runReport != "" {
		if err := writeJSON(cmd.OutOrStdout(), runReport, result); err != nil {
			return err
		}
	}

	summarize(cmd, result)
	return checkVerdict(result.Compliance.Verdict, runStrict)
}

// summarize prints a one-line outcome to stderr so stdout stays machine-readable
func summarize(cmd *cobra.Command, result *pipeline.Result) {
	c := result.Compliance
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %s (%d violation(s), %d fix(es), %d unresolved, %d truncated)\n",
		result.RunID, c.Verdict, len(c.Violations), len(c.AutoFixes), len(c.Unresolved), len(result.Constraints))
}

// checkVerdict fails a strict run whose verdict is not compliant
func checkVerdict(verdict types.CampaignVerdict, strict bool) error {
	if strict && verdict != types.VerdictCompliant {
		return fmt.Errorf("campaign verdict is %s", verdict)
	}
	return nil
}
