package config

import (
	"github.com/garyjia/agent-orchestrator/internal/application/policy"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
	"github.com/garyjia/agent-orchestrator/internal/container"
)

// ToContainerConfig converts the file-based configuration into the
// container's typed configuration
func (c *Config) ToContainerConfig() *container.Config {
	endpoints := make(map[string]string, len(c.Workers.Endpoints))
	for role, url := range c.Workers.Endpoints {
		endpoints[role] = url
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Workers: container.WorkersConfig{
			Endpoints:     endpoints,
			Timeout:       c.Workers.Timeout,
			ProbeInterval: c.Workers.ProbeInterval,
		},
		Orchestrator: container.OrchestratorConfig{
			StageTimeout:       c.Orchestrator.StageTimeout,
			Preflight:          workflow.PreflightMode(c.Orchestrator.Preflight),
			SeedMode:           policy.SeedMode(c.Orchestrator.SeedMode),
			SchedulerQueueSize: c.Orchestrator.SchedulerQueueSize,
		},
		Selector: container.SelectorConfig{
			DefaultRole: c.Selector.DefaultRole,
			UseLLM:      c.Selector.UseLLM,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:        c.OpenAI.APIKey,
			BaseURL:       c.OpenAI.BaseURL,
			Model:         c.OpenAI.Model,
			MinConfidence: c.OpenAI.MinConfidence,
			Timeout:       c.OpenAI.Timeout,
			PromptsPath:   c.OpenAI.PromptsPath,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			ReceiveID:     c.Lark.ReceiveID,
		},
		Metrics:   container.MetricsConfig{Enabled: c.Metrics.Enabled},
		Documents: container.DocumentsConfig{MaxPages: c.Documents.MaxPages},
	}
}
