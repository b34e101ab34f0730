package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/garyjia/agent-orchestrator/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Workers      WorkersConfig      `mapstructure:"workers"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Selector     SelectorConfig     `mapstructure:"selector"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Lark         LarkConfig         `mapstructure:"lark"`
	GitHub       GitHubConfig       `mapstructure:"github"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds policy store configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkersConfig maps role ids to worker base URLs
type WorkersConfig struct {
	Endpoints     map[string]string `mapstructure:"endpoints"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	ProbeInterval time.Duration     `mapstructure:"probe_interval"`
}

// OrchestratorConfig holds workflow execution settings
type OrchestratorConfig struct {
	StageTimeout       time.Duration `mapstructure:"stage_timeout"`
	Preflight          string        `mapstructure:"preflight"`
	SeedMode           string        `mapstructure:"seed_mode"`
	SchedulerQueueSize int           `mapstructure:"scheduler_queue_size"`
}

// SelectorConfig holds role selection settings
type SelectorConfig struct {
	DefaultRole string `mapstructure:"default_role"`
	UseLLM      bool   `mapstructure:"use_llm"`
}

// OpenAIConfig holds the optional model classifier settings
type OpenAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	MinConfidence float64       `mapstructure:"min_confidence"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PromptsPath   string        `mapstructure:"prompts_path"`
}

// LarkConfig holds the optional operator notifier settings
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	ReceiveID     string `mapstructure:"receive_id"`
}

// GitHubConfig holds the triage webhook settings
type GitHubConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	WebhookSecret string  `mapstructure:"webhook_secret"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	AutoRun       bool    `mapstructure:"auto_run"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DocumentsConfig bounds PDF knowledge imports
type DocumentsConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

var (
	validPreflight = map[string]bool{"off": true, "audit": true, "enforce": true}
	validSeedMode  = map[string]bool{"missing": true, "overwrite": true, "off": true}
)

// Load reads configPath (optional) and the environment. Environment
// variables use the ORCH_ prefix with dots replaced by underscores, e.g.
// ORCH_SERVER_PORT; well-known secrets also have unprefixed names.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("database.path", "data/policy.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workers.endpoints", map[string]string{
		"architect": "http://localhost:8001",
		"developer": "http://localhost:8002",
		"devops":    "http://localhost:8003",
		"qa":        "http://localhost:8004",
		"manager":   "http://localhost:8005",
	})
	v.SetDefault("workers.timeout", 30*time.Second)
	v.SetDefault("workers.probe_interval", 30*time.Second)

	v.SetDefault("orchestrator.stage_timeout", 30*time.Second)
	v.SetDefault("orchestrator.preflight", "off")
	v.SetDefault("orchestrator.seed_mode", "missing")
	v.SetDefault("orchestrator.scheduler_queue_size", 64)

	v.SetDefault("selector.default_role", "developer")
	v.SetDefault("selector.use_llm", false)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.min_confidence", 0.6)
	v.SetDefault("openai.timeout", 20*time.Second)

	v.SetDefault("lark.receive_id_type", "chat_id")

	v.SetDefault("github.rate_per_second", 1.0)
	v.SetDefault("github.burst", 10)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("documents.max_pages", 50)
}

// bindEnvVars binds the unprefixed names operators already use for secrets
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"openai.api_key":        {"ORCH_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"openai.base_url":       {"ORCH_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
		"lark.app_id":           {"ORCH_LARK_APP_ID", "LARK_APP_ID"},
		"lark.app_secret":       {"ORCH_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"github.webhook_secret": {"ORCH_GITHUB_WEBHOOK_SECRET", "GITHUB_WEBHOOK_SECRET"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// normalize lowercases role keys and modes
func (c *Config) normalize() {
	endpoints := make(map[string]string, len(c.Workers.Endpoints))
	for role, url := range c.Workers.Endpoints {
		endpoints[strings.ToLower(strings.TrimSpace(role))] = strings.TrimRight(strings.TrimSpace(url), "/")
	}
	c.Workers.Endpoints = endpoints
	c.Orchestrator.Preflight = strings.ToLower(c.Orchestrator.Preflight)
	c.Orchestrator.SeedMode = strings.ToLower(c.Orchestrator.SeedMode)
	c.Selector.DefaultRole = strings.ToLower(c.Selector.DefaultRole)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if len(c.Workers.Endpoints) == 0 {
		errs = append(errs, errors.New("workers.endpoints must name at least one role"))
	}
	for role, endpoint := range c.Workers.Endpoints {
		if err := utils.ValidateIdentifier(role); err != nil {
			errs = append(errs, fmt.Errorf("workers.endpoints: %w", err))
		}
		if err := utils.ValidateEndpoint(endpoint); err != nil {
			errs = append(errs, fmt.Errorf("workers.endpoints.%s: %w", role, err))
		}
	}
	if c.Workers.Timeout <= 0 {
		errs = append(errs, errors.New("workers.timeout must be positive"))
	}

	if c.Orchestrator.StageTimeout <= 0 {
		errs = append(errs, errors.New("orchestrator.stage_timeout must be positive"))
	}
	if !validPreflight[c.Orchestrator.Preflight] {
		errs = append(errs, fmt.Errorf("orchestrator.preflight %q must be off, audit or enforce", c.Orchestrator.Preflight))
	}
	if !validSeedMode[c.Orchestrator.SeedMode] {
		errs = append(errs, fmt.Errorf("orchestrator.seed_mode %q must be missing, overwrite or off", c.Orchestrator.SeedMode))
	}

	if c.Selector.DefaultRole != "" {
		if _, ok := c.Workers.Endpoints[c.Selector.DefaultRole]; !ok {
			errs = append(errs, fmt.Errorf("selector.default_role %q has no worker endpoint", c.Selector.DefaultRole))
		}
	}
	if c.Selector.UseLLM && c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required when selector.use_llm is set"))
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			errs = append(errs, errors.New("lark.app_id and lark.app_secret are required when lark is enabled"))
		}
		if c.Lark.ReceiveID == "" {
			errs = append(errs, errors.New("lark.receive_id is required when lark is enabled"))
		}
	}

	if c.GitHub.Enabled && c.GitHub.WebhookSecret == "" {
		errs = append(errs, errors.New("github.webhook_secret is required when github is enabled"))
	}

	return errors.Join(errs...)
}
