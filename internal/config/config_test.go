package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/agent-orchestrator/internal/application/policy"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/policy.db", cfg.Database.Path)
	assert.Len(t, cfg.Workers.Endpoints, 5)
	assert.Equal(t, "http://localhost:8003", cfg.Workers.Endpoints["devops"])
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.StageTimeout)
	assert.Equal(t, "off", cfg.Orchestrator.Preflight)
	assert.Equal(t, "missing", cfg.Orchestrator.SeedMode)
	assert.Equal(t, "developer", cfg.Selector.DefaultRole)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
orchestrator:
  stage_timeout: 5s
  preflight: ENFORCE
workers:
  endpoints:
    Developer: "http://dev.internal:9000/"
selector:
  default_role: developer
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.StageTimeout)
	assert.Equal(t, "enforce", cfg.Orchestrator.Preflight)
	assert.Equal(t, "http://dev.internal:9000", cfg.Workers.Endpoints["developer"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORCH_SERVER_PORT", "7070")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ORCH_SELECTOR_USE_LLM", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.True(t, cfg.Selector.UseLLM)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no endpoints", func(c *Config) { c.Workers.Endpoints = map[string]string{} }, "at least one role"},
		{"bad endpoint", func(c *Config) { c.Workers.Endpoints["qa"] = "ftp://qa" }, "workers.endpoints.qa"},
		{"bad preflight", func(c *Config) { c.Orchestrator.Preflight = "strict" }, "orchestrator.preflight"},
		{"bad seed mode", func(c *Config) { c.Orchestrator.SeedMode = "always" }, "orchestrator.seed_mode"},
		{"default role without worker", func(c *Config) { c.Selector.DefaultRole = "intern" }, "selector.default_role"},
		{"llm without key", func(c *Config) { c.Selector.UseLLM = true }, "openai.api_key"},
		{"lark without credentials", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
		{"github without secret", func(c *Config) { c.GitHub.Enabled = true }, "github.webhook_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  preflight: audit
  seed_mode: overwrite
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, workflow.PreflightAudit, cc.Orchestrator.Preflight)
	assert.Equal(t, policy.SeedOverwrite, cc.Orchestrator.SeedMode)
	assert.Equal(t, cfg.Workers.Endpoints, cc.Workers.Endpoints)
	assert.NoError(t, cc.Validate())
}
