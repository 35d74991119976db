package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/schemas"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

var validatePolicyCmd = &cobra.Command{
	Use:   "validate-policy [file]",
	Short: "Check a policy file (or a built-in rule set) for errors",
	Long: `Decodes and validates a policy, then compiles every prohibited-term rule.

JSON policies are also checked against the policy JSON schema. With no file argument the
rule set named by --policy or --jurisdiction is checked; --list prints the built-in rule sets.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidatePolicy,
}

var validatePolicyList bool

func init() {
	validatePolicyCmd.Flags().BoolVar(&validatePolicyList, "list", false, "List the built-in jurisdictions and exit")
	rootCmd.AddCommand(validatePolicyCmd)
}

func runValidatePolicy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if validatePolicyList {
		for _, name := range policy.BuiltinJurisdictions() {
			_, _ = fmt.Fprintln(out, name)
		}
		return nil
	}

	var (
		pol    *types.PolicyConfig
		source string
		err    error
	)
	switch {
	case len(args) == 1:
		source = args[0]
		pol, err = loadPolicyFile(source)
	default:
		cfg, settingsErr := loadSettings(cmd)
		if settingsErr != nil {
			return settingsErr
		}
		source = cfg.Policy
		if source == "" {
			source = "built-in " + cfg.Jurisdiction
		}
		pol, err = loadPolicy(cfg)
	}
	if err != nil {
		_, _ = fmt.Fprintf(out, "Validation failed: %s\n", source)
		return err
	}

	if _, err := compliance.NewScanner(pol); err != nil {
		_, _ = fmt.Fprintf(out, "Validation failed: %s\n", source)
		return err
	}

	_, _ = fmt.Fprintf(out, "Validation passed: %s (%s: %d rule(s), %d disclosure(s), %d limit(s))\n",
		source, pol.Jurisdiction, len(pol.ProhibitedTerms), len(pol.RequiredDisclosures), len(pol.Limits))
	return nil
}

// loadPolicyFile validates a JSON policy against the schema before loading it
func loadPolicyFile(path string) (*types.PolicyConfig, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		if err := schemas.ValidatePolicy(data); err != nil {
			return nil, err
		}
	}
	return policy.Load(path)
}
