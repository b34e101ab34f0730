// Package container provides dependency injection and lifecycle management
// for the orchestrator: ordered initialization and reverse-order teardown.
package container

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/agent-orchestrator/internal/application/policy"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Workers      WorkersConfig
	Orchestrator OrchestratorConfig
	Selector     SelectorConfig
	OpenAI       OpenAIConfig
	Lark         LarkConfig
	Metrics      MetricsConfig
	Documents    DocumentsConfig
}

// DatabaseConfig holds policy store connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// WorkersConfig describes the role workers.
type WorkersConfig struct {
	// Endpoints maps role id to worker base URL; it defines the role registry
	Endpoints map[string]string

	// Timeout bounds each HTTP call to a worker
	Timeout time.Duration

	// ProbeInterval is how often /health is probed; zero disables the prober
	ProbeInterval time.Duration
}

// OrchestratorConfig holds workflow execution settings.
type OrchestratorConfig struct {
	StageTimeout       time.Duration
	Preflight          workflow.PreflightMode
	SeedMode           policy.SeedMode
	SchedulerQueueSize int
}

// SelectorConfig holds role selection settings.
type SelectorConfig struct {
	DefaultRole string

	// UseLLM puts the model classifier ahead of the keyword classifier
	UseLLM bool
}

// OpenAIConfig holds model classifier settings.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MinConfidence float64
	Timeout       time.Duration

	// PromptsPath optionally overrides the built-in prompts
	PromptsPath string
}

// LarkConfig holds operator notification settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ReceiveID     string
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool
}

// DocumentsConfig bounds PDF text extraction.
type DocumentsConfig struct {
	MaxPages int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/policy.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Workers: WorkersConfig{
			Endpoints: map[string]string{
				"architect": "http://localhost:8001",
				"developer": "http://localhost:8002",
				"devops":    "http://localhost:8003",
				"qa":        "http://localhost:8004",
				"manager":   "http://localhost:8005",
			},
			Timeout:       30 * time.Second,
			ProbeInterval: 30 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			StageTimeout:       workflow.DefaultStageTimeout,
			Preflight:          workflow.PreflightOff,
			SeedMode:           policy.SeedMissing,
			SchedulerQueueSize: 64,
		},
		Selector: SelectorConfig{DefaultRole: "developer"},
		OpenAI: OpenAIConfig{
			Model:         "gpt-4o-mini",
			MinConfidence: 0.6,
			Timeout:       20 * time.Second,
		},
		Lark:      LarkConfig{ReceiveIDType: "chat_id"},
		Metrics:   MetricsConfig{Enabled: true},
		Documents: DocumentsConfig{MaxPages: 50},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if len(c.Workers.Endpoints) == 0 {
		return errors.New("workers.endpoints must name at least one role")
	}
	if !c.Orchestrator.Preflight.IsValid() {
		return fmt.Errorf("unknown preflight mode %q", c.Orchestrator.Preflight)
	}
	switch c.Orchestrator.SeedMode {
	case policy.SeedMissing, policy.SeedOverwrite, policy.SeedOff:
	default:
		return fmt.Errorf("unknown seed mode %q", c.Orchestrator.SeedMode)
	}
	if c.Selector.UseLLM && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required for the model classifier")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ReceiveID == "") {
		return errors.New("lark app_id, app_secret and receive_id are required when enabled")
	}
	return nil
}
