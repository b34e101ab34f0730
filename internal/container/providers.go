package container

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/policy"
	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/application/selector"
	"github.com/garyjia/agent-orchestrator/internal/application/service"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
	infraLark "github.com/garyjia/agent-orchestrator/internal/infrastructure/external/lark"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/external/openai"
	workerclient "github.com/garyjia/agent-orchestrator/internal/infrastructure/external/worker"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/metrics"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/repository"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/worker"
	"github.com/garyjia/agent-orchestrator/pkg/database"
	"github.com/garyjia/agent-orchestrator/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// MetricsBundle holds the Prometheus registry and the orchestrator collectors.
type MetricsBundle struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// ProvideDatabase opens the policy store and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Policy store ready", zap.String("path", cfg.Path), zap.Int("migrations_applied", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates the policy store repositories.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (policy.Repositories, error) {
	if db == nil {
		return policy.Repositories{}, fmt.Errorf("database connection is required")
	}
	return policy.Repositories{
		Roles:       repository.NewRoleRepository(db.DB, logger),
		Rules:       repository.NewRuleRepository(db.DB, logger),
		Knowledge:   repository.NewKnowledgeRepository(db.DB, logger),
		Assessments: repository.NewAssessmentRepository(db.DB, logger),
	}, nil
}

// ProvideRegistry builds the role registry from the configured endpoints.
func ProvideRegistry(cfg *WorkersConfig) (*registry.Registry, error) {
	reg, err := registry.FromEndpoints(cfg.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to build role registry: %w", err)
	}
	return reg, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger))), nil
}

// ProvideMetrics registers collectors and subscribes them to the dispatcher.
// Returns nil when metrics are disabled.
func ProvideMetrics(cfg *MetricsConfig, d dispatcher.Dispatcher) *MetricsBundle {
	if !cfg.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	m.Subscribe(d)
	return &MetricsBundle{Registry: reg, Metrics: m}
}

// ProvidePolicyEngine creates the compliance engine and seeds defaults.
func ProvidePolicyEngine(ctx context.Context, repos policy.Repositories, tx port.TransactionManager, d dispatcher.Dispatcher, mode policy.SeedMode, logger *zap.Logger) (*policy.Engine, error) {
	engine := policy.NewEngine(repos, tx, logger, policy.WithDispatcher(d))
	if err := engine.Seed(ctx, mode); err != nil {
		return nil, fmt.Errorf("failed to seed policy store: %w", err)
	}
	return engine, nil
}

// ProvideSelector creates the role selector, with the model classifier in
// front of the keyword classifier when enabled.
func ProvideSelector(reg *registry.Registry, sel *SelectorConfig, ai *OpenAIConfig, logger *zap.Logger) (*selector.Selector, error) {
	opts := []selector.Option{}
	if sel.DefaultRole != "" {
		opts = append(opts, selector.WithDefaultRole(sel.DefaultRole))
	}

	if sel.UseLLM {
		prompts := openai.DefaultPrompts()
		if ai.PromptsPath != "" {
			loaded, err := openai.LoadPrompts(ai.PromptsPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load prompts: %w", err)
			}
			prompts = loaded
		}
		llm := openai.NewClassifier(openai.Config{
			APIKey:        ai.APIKey,
			BaseURL:       ai.BaseURL,
			Model:         ai.Model,
			MinConfidence: ai.MinConfidence,
			Timeout:       ai.Timeout,
		}, reg.RoleIDs(), prompts, logger)
		opts = append(opts, selector.WithClassifiers(llm, selector.NewKeywordClassifier()))
		logger.Info("Model classifier enabled", zap.String("model", ai.Model))
	}

	return selector.New(reg, logger, opts...), nil
}

// WorkflowDeps holds dependencies for the orchestrator.
type WorkflowDeps struct {
	Registry   *registry.Registry
	Worker     port.WorkerClient
	Dispatcher dispatcher.Dispatcher
	Checker    port.ComplianceChecker
	Roles      port.RoleRepository
	Selector   workflow.RoleSelector
	Config     *OrchestratorConfig
	Logger     *zap.Logger
}

// ProvideOrchestrator creates the workflow orchestrator.
func ProvideOrchestrator(deps *WorkflowDeps) (workflow.Orchestrator, error) {
	if deps.Registry == nil || deps.Worker == nil {
		return nil, fmt.Errorf("registry and worker client are required")
	}
	opts := []workflow.Option{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithStageTimeout(deps.Config.StageTimeout),
	}
	if deps.Selector != nil {
		opts = append(opts, workflow.WithRoleSelector(deps.Selector))
	}
	if deps.Config.Preflight != workflow.PreflightOff {
		opts = append(opts, workflow.WithPreflight(deps.Config.Preflight, deps.Checker, deps.Roles))
	}
	return workflow.NewOrchestrator(deps.Registry, deps.Worker, deps.Logger, opts...), nil
}

// ProvideNotifications subscribes operator notifications when Lark is
// enabled. Returns nil otherwise.
func ProvideNotifications(cfg *LarkConfig, workflows service.WorkflowLookup, d dispatcher.Dispatcher, logger *zap.Logger) (service.NotificationService, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	notifier, err := infraLark.NewNotifier(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		ReceiveID:     cfg.ReceiveID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark notifier: %w", err)
	}
	svc := service.NewNotificationService(notifier, workflows, utils.NewKVLogger(logger))
	svc.Subscribe(d)
	return svc, nil
}

// WorkerDeps holds dependencies for the background workers.
type WorkerDeps struct {
	Orchestrator  workflow.Orchestrator
	Client        *workerclient.Client
	Registry      *registry.Registry
	Metrics       *metrics.Metrics
	Config        *OrchestratorConfig
	ProbeInterval time.Duration
	Logger        *zap.Logger
}

// WorkerBundle holds the manager and the workers other components talk to.
type WorkerBundle struct {
	Manager   *worker.Manager
	Scheduler *worker.Scheduler
	Prober    *worker.Prober
}

// ProvideWorkers creates the scheduler and, when enabled, the endpoint prober.
func ProvideWorkers(deps *WorkerDeps) (*WorkerBundle, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	manager := worker.NewManager(deps.Logger)

	scheduler := worker.NewScheduler(deps.Orchestrator, deps.Config.SchedulerQueueSize, deps.Logger)
	manager.Register(scheduler)

	bundle := &WorkerBundle{Manager: manager, Scheduler: scheduler}

	if deps.ProbeInterval > 0 {
		var recorder worker.HealthRecorder
		if deps.Metrics != nil {
			recorder = deps.Metrics
		}
		bundle.Prober = worker.NewProber(deps.Client, recorder, deps.Registry.RoleIDs(), deps.ProbeInterval, deps.Logger)
		manager.Register(bundle.Prober)
	}

	return bundle, nil
}
