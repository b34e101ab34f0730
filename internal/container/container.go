package container

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/policy"
	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/application/selector"
	"github.com/garyjia/agent-orchestrator/internal/application/service"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/document"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/export"
	workerclient "github.com/garyjia/agent-orchestrator/internal/infrastructure/external/worker"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/worker"
	"github.com/garyjia/agent-orchestrator/pkg/database"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories policy.Repositories

	// Infrastructure - External
	registry     *registry.Registry
	workerClient *workerclient.Client
	exporter     *export.ExcelExporter
	extractor    *document.PDFTextExtractor

	// Application
	dispatcher    dispatcher.Dispatcher
	metrics       *MetricsBundle
	policy        *policy.Engine
	selector      *selector.Selector
	orchestrator  workflow.Orchestrator
	notifications service.NotificationService

	// Workers
	workers *WorkerBundle

	// Lifecycle
	mu     sync.RWMutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Policy store and repositories
// 2. Role registry and worker client
// 3. Dispatcher and metrics
// 4. Compliance engine (seeded), selector, orchestrator, notifications
// 5. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	var runCtx context.Context
	runCtx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternal(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized", zap.Strings("roles", c.registry.RoleIDs()))

	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	if err := c.initApplication(runCtx); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	c.logger.Info("Application initialized",
		zap.String("preflight", string(c.config.Orchestrator.Preflight)),
		zap.Bool("notifications", c.notifications != nil))

	if err := c.initWorkers(runCtx); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Workers first so in-flight workflows finish emitting events
	if c.workers != nil {
		if err := c.workers.Manager.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports each component as "ok" or a short reason.
func (c *Container) Health(ctx context.Context) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[string]string)

	switch {
	case c.database == nil:
		status["database"] = "not initialized"
	default:
		if err := c.database.Check(ctx); err != nil {
			status["database"] = err.Error()
		} else {
			status["database"] = "ok"
		}
	}

	if c.dispatcher != nil {
		status["dispatcher"] = "ok"
	} else {
		status["dispatcher"] = "not initialized"
	}

	switch {
	case c.workers == nil:
		status["workers"] = "not initialized"
	case !c.workers.Manager.IsRunning():
		status["workers"] = "stopped"
	default:
		status["workers"] = "ok"
	}

	if c.workers != nil && c.workers.Prober != nil {
		probed := c.workers.Prober.Status()
		roles := make([]string, 0, len(probed))
		for role := range probed {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			if probed[role] {
				status["worker:"+role] = "ok"
			} else {
				status["worker:"+role] = "unreachable"
			}
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.database, c.logger)
	if err != nil {
		c.database.Close()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	reg, err := ProvideRegistry(&c.config.Workers)
	if err != nil {
		return err
	}
	c.registry = reg
	c.workerClient = workerclient.NewClient(reg, c.config.Workers.Timeout, c.logger)
	c.exporter = export.NewExcelExporter(c.logger)
	c.extractor = document.NewPDFTextExtractor(c.config.Documents.MaxPages, c.logger)
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	c.metrics = ProvideMetrics(&c.config.Metrics, disp)
	return nil
}

func (c *Container) initApplication(ctx context.Context) error {
	engine, err := ProvidePolicyEngine(ctx, c.repositories, c.db, c.dispatcher, c.config.Orchestrator.SeedMode, c.logger)
	if err != nil {
		return err
	}
	c.policy = engine

	sel, err := ProvideSelector(c.registry, &c.config.Selector, &c.config.OpenAI, c.logger)
	if err != nil {
		return err
	}
	c.selector = sel

	orch, err := ProvideOrchestrator(&WorkflowDeps{
		Registry:   c.registry,
		Worker:     c.workerClient,
		Dispatcher: c.dispatcher,
		Checker:    c.policy,
		Roles:      c.repositories.Roles,
		Selector:   c.selector,
		Config:     &c.config.Orchestrator,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.orchestrator = orch

	notifications, err := ProvideNotifications(&c.config.Lark, orch, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.notifications = notifications
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	deps := &WorkerDeps{
		Orchestrator:  c.orchestrator,
		Client:        c.workerClient,
		Registry:      c.registry,
		Config:        &c.config.Orchestrator,
		ProbeInterval: c.config.Workers.ProbeInterval,
		Logger:        c.logger,
	}
	if c.metrics != nil {
		deps.Metrics = c.metrics.Metrics
	}

	workers, err := ProvideWorkers(deps)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.Manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() *sqlite.DB {
	return c.db
}

// Repositories returns the policy store repositories.
func (c *Container) Repositories() policy.Repositories {
	return c.repositories
}

// Registry returns the role registry.
func (c *Container) Registry() *registry.Registry {
	return c.registry
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Policy returns the compliance engine.
func (c *Container) Policy() *policy.Engine {
	return c.policy
}

// Selector returns the role selector.
func (c *Container) Selector() *selector.Selector {
	return c.selector
}

// Orchestrator returns the workflow orchestrator.
func (c *Container) Orchestrator() workflow.Orchestrator {
	return c.orchestrator
}

// Scheduler returns the background workflow scheduler.
func (c *Container) Scheduler() *worker.Scheduler {
	return c.workers.Scheduler
}

// Exporter returns the assessment report exporter.
func (c *Container) Exporter() *export.ExcelExporter {
	return c.exporter
}

// Extractor returns the PDF text extractor.
func (c *Container) Extractor() *document.PDFTextExtractor {
	return c.extractor
}

// MetricsHandler serves the Prometheus registry, or nil when disabled.
func (c *Container) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return nil
	}
	return promhttp.HandlerFor(c.metrics.Registry, promhttp.HandlerOpts{})
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
