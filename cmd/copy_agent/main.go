// Package main provides the copy_agent CLI: it checks listing marketing copy against
// fair-housing policy, fixes what it can, enforces channel limits and serves the same
// pipeline over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "copy_agent",
	Short:         "Fair-housing compliance and quality checks for listing copy",
	Long:          "copy_agent scans real-estate marketing copy for fair-housing violations, auto-fixes what it can, truncates fields to channel limits, scores quality and records an auditable verdict.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
