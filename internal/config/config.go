// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Environment variables consulted when the file and flags leave a value empty
const (
	EnvAPIKey      = "GEMINI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Policy
	Policy       string `json:"policy,omitempty"`       // Path to a YAML or JSON policy file
	Jurisdiction string `json:"jurisdiction,omitempty"` // Built-in rule set, used when Policy is empty

	// Collaborators
	APIKey         string `json:"api_key,omitempty"`         // Gemini API key; collaborators are off without one
	JudgeTimeout   string `json:"judge_timeout,omitempty"`   // e.g. "20s"
	RewriteTimeout string `json:"rewrite_timeout,omitempty"` // e.g. "30s"
	ModelTimeout   string `json:"model_timeout,omitempty"`   // e.g. "30s"

	// Behavior
	FixSoft     bool   `json:"fix_soft,omitempty"`     // Also auto-fix soft violations
	Concurrency int    `json:"concurrency,omitempty"`  // Fields processed in parallel per stage
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed debug information
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for the audit store
	Port        int    `json:"port,omitempty"`         // HTTP port for serve
}

// Defaults returns the values used when neither the file nor flags set them
func Defaults() Config {
	return Config{
		Jurisdiction:   "us-fha",
		JudgeTimeout:   "20s",
		RewriteTimeout: "30s",
		ModelTimeout:   "30s",
		Concurrency:    4,
		Port:           8080,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Policy != "" && c.Jurisdiction != "" {
		return fmt.Errorf("config error: 'policy' and 'jurisdiction' are mutually exclusive")
	}
	if c.Policy != "" {
		if _, err := os.Stat(c.Policy); os.IsNotExist(err) {
			return fmt.Errorf("config error: policy file not found: %s", c.Policy)
		}
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("config error: 'concurrency' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	for name, value := range map[string]string{
		"judge_timeout":   c.JudgeTimeout,
		"rewrite_timeout": c.RewriteTimeout,
		"model_timeout":   c.ModelTimeout,
	} {
		if _, err := parseTimeout(value); err != nil {
			return fmt.Errorf("config error: '%s': %w", name, err)
		}
	}

	return nil
}

// Timeouts returns the judge, rewrite and model timeouts. Empty values are zero,
// which selects each stage's default.
func (c *Config) Timeouts() (judge, rewrite, model time.Duration) {
	judge, _ = parseTimeout(c.JudgeTimeout)
	rewrite, _ = parseTimeout(c.RewriteTimeout)
	model, _ = parseTimeout(c.ModelTimeout)
	return judge, rewrite, model
}

func parseTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must be non-negative, got %s", value)
	}
	return d, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Policy == "" && result.Jurisdiction == "" {
		result.Policy = defaults.Policy
		if result.Policy == "" {
			result.Jurisdiction = defaults.Jurisdiction
		}
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.JudgeTimeout == "" {
		result.JudgeTimeout = defaults.JudgeTimeout
	}
	if result.RewriteTimeout == "" {
		result.RewriteTimeout = defaults.RewriteTimeout
	}
	if result.ModelTimeout == "" {
		result.ModelTimeout = defaults.ModelTimeout
	}

	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv fills the API key and database URL from the environment when unset
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
}
