package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonathan/listing-copy-guard/internal/autofix"
	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/config"
	"github.com/jonathan/listing-copy-guard/internal/db"
	"github.com/jonathan/listing-copy-guard/internal/llm"
	"github.com/jonathan/listing-copy-guard/internal/pipeline"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/quality"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// Flags shared by every command
var (
	flagConfigPath     string
	flagPolicy         string
	flagJurisdiction   string
	flagAPIKey         string
	flagDatabaseURL    string
	flagJudgeTimeout   string
	flagRewriteTimeout string
	flagModelTimeout   string
	flagConcurrency    int
	flagFixSoft        bool
	flagVerbose        bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVarP(&flagPolicy, "policy", "p", "", "Path to a YAML or JSON policy file (mutually exclusive with --jurisdiction)")
	pf.StringVar(&flagJurisdiction, "jurisdiction", "", "Built-in rule set to use (default us-fha)")
	pf.StringVar(&flagAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	pf.StringVar(&flagDatabaseURL, "db-url", "", "PostgreSQL connection URL for the audit store (optional, defaults to DATABASE_URL env var)")
	pf.StringVar(&flagJudgeTimeout, "judge-timeout", "", "Per-field budget for the contextual judge, e.g. 20s")
	pf.StringVar(&flagRewriteTimeout, "rewrite-timeout", "", "Per-violation budget for the rewriter, e.g. 30s")
	pf.StringVar(&flagModelTimeout, "model-timeout", "", "Per-field budget for the quality model, e.g. 30s")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Fields processed in parallel per stage")
	pf.BoolVar(&flagFixSoft, "fix-soft", false, "Also auto-fix soft violations")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed debug information")
}

// loadSettings merges the config file, explicitly set flags, the environment and
// defaults, in that order of precedence after flags.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if flagConfigPath != "" {
		loaded, err := config.LoadConfig(flagConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = flagPolicy
		if !flags.Changed("jurisdiction") {
			cfg.Jurisdiction = ""
		}
	}
	if flags.Changed("jurisdiction") {
		cfg.Jurisdiction = flagJurisdiction
		if !flags.Changed("policy") {
			cfg.Policy = ""
		}
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flags.Changed("judge-timeout") {
		cfg.JudgeTimeout = flagJudgeTimeout
	}
	if flags.Changed("rewrite-timeout") {
		cfg.RewriteTimeout = flagRewriteTimeout
	}
	if flags.Changed("model-timeout") {
		cfg.ModelTimeout = flagModelTimeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if flags.Changed("fix-soft") {
		cfg.FixSoft = flagFixSoft
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}

	cfg.ApplyEnv()
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds a production zap logger, at debug level when verbose
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

// loadPolicy resolves the policy file or built-in jurisdiction of cfg
func loadPolicy(cfg config.Config) (*types.PolicyConfig, error) {
	if cfg.Policy != "" {
		return policy.Load(cfg.Policy)
	}
	return policy.Builtin(cfg.Jurisdiction)
}

// collaborators holds the optional LLM-backed stage collaborators
type collaborators struct {
	Judge    compliance.Judge
	Rewriter autofix.Rewriter
	Model    quality.Model
	client   llm.Client
}

func (c *collaborators) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

// newCollaborators connects to Gemini when an API key is configured. Without one
// every stage runs rule-only.
func newCollaborators(ctx context.Context, cfg config.Config, logger *zap.Logger) (*collaborators, error) {
	c := &collaborators{}
	if cfg.APIKey == "" {
		logger.Info("no API key configured; collaborators disabled")
		return c, nil
	}
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	c.client = client
	c.Judge = compliance.NewLLMJudge(client)
	c.Rewriter = autofix.NewLLMRewriter(client)
	c.Model = quality.NewLLMModel(client)
	return c, nil
}

// openStore connects the audit store when a database URL is configured
func openStore(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to prepare audit store: %w", err)
	}
	return database, nil
}

// pipelineOptions maps cfg onto pipeline options
func pipelineOptions(cfg config.Config) pipeline.Options {
	judge, rewrite, model := cfg.Timeouts()
	return pipeline.Options{
		FixSoft:        cfg.FixSoft,
		JudgeTimeout:   judge,
		RewriteTimeout: rewrite,
		ModelTimeout:   model,
		Concurrency:    cfg.Concurrency,
	}
}

// writeJSON writes v indented to path, or to w when path is empty or "-"
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readJSON decodes the file at path into v
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
