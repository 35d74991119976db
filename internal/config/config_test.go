package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"jurisdiction": "ca-feha",
		"fix_soft": true,
		"concurrency": 8,
		"judge_timeout": "5s",
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "ca-feha", cfg.Jurisdiction)
	assert.True(t, cfg.FixSoft)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "5s", cfg.JudgeTimeout)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	policyFile := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policyFile, []byte("jurisdiction: test\n"), 0644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults", cfg: Defaults()},
		{name: "policy file", cfg: Config{Policy: policyFile}},
		{name: "policy and jurisdiction", cfg: Config{Policy: policyFile, Jurisdiction: "us-fha"}, wantErr: "mutually exclusive"},
		{name: "missing policy file", cfg: Config{Policy: "/nonexistent/policy.yaml"}, wantErr: "policy file not found"},
		{name: "negative concurrency", cfg: Config{Concurrency: -1}, wantErr: "concurrency"},
		{name: "bad port", cfg: Config{Port: 70000}, wantErr: "port"},
		{name: "bad timeout", cfg: Config{JudgeTimeout: "soon"}, wantErr: "judge_timeout"},
		{name: "negative timeout", cfg: Config{ModelTimeout: "-1s"}, wantErr: "model_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTimeouts(t *testing.T) {
	cfg := Config{JudgeTimeout: "5s", RewriteTimeout: "1m"}
	judge, rewrite, model := cfg.Timeouts()

	assert.Equal(t, 5*time.Second, judge)
	assert.Equal(t, time.Minute, rewrite)
	assert.Zero(t, model)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		APIKey:      "key",
		Concurrency: 2,
	}

	merged := partial.MergeWithDefaults(Defaults())

	assert.Equal(t, "key", merged.APIKey)
	assert.Equal(t, 2, merged.Concurrency)
	assert.Equal(t, "us-fha", merged.Jurisdiction)
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, "20s", merged.JudgeTimeout)
}

func TestMergeWithDefaults_PolicyKeepsJurisdictionEmpty(t *testing.T) {
	cfg := Config{Policy: "rules.yaml"}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "rules.yaml", merged.Policy)
	assert.Empty(t, merged.Jurisdiction)
	assert.NoError(t, (&Config{Policy: "", Jurisdiction: merged.Jurisdiction}).Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvDatabaseURL, "postgres://env")

	cfg := Config{APIKey: "file-key"}
	cfg.ApplyEnv()

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
}
