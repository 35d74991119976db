package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/listing-copy-guard/internal/server"
	"github.com/jonathan/listing-copy-guard/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the pipeline over REST.

The configured policy is the default for requests that name no jurisdiction or
inline policy. Runs are persisted to PostgreSQL when --db-url or DATABASE_URL is set; the audit
endpoints answer 503 otherwise. Rate limits are read from RATE_LIMIT_* variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	collab, err := newCollaborators(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer collab.Close()

	limits, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}

	srvCfg := server.Config{
		Port:         cfg.Port,
		Policy:       pol,
		Judge:        collab.Judge,
		Rewriter:     collab.Rewriter,
		Model:        collab.Model,
		Options:      pipelineOptions(cfg),
		RateLimit:    limits,
		Logger:       logger,
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		srvCfg.Store = store
	} else {
		logger.Warn("no database configured; runs will not be persisted")
	}

	logger.Info("serving", zap.Int("port", cfg.Port), zap.String("jurisdiction", pol.Jurisdiction))
	return server.New(srvCfg).Start(ctx)
}
