package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/config"
	"github.com/garyjia/agent-orchestrator/internal/container"
	httpapi "github.com/garyjia/agent-orchestrator/internal/interfaces/http"
	"github.com/garyjia/agent-orchestrator/pkg/utils"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file (empty for env only)")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "agent-orchestrator",
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting agent orchestrator",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("roles", len(cfg.Workers.Endpoints)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	kv := utils.NewKVLogger(logger)
	handlers := httpapi.NewHandlers(httpapi.Dependencies{
		Orchestrator: c.Orchestrator(),
		Policy:       c.Policy(),
		Selector:     c.Selector(),
		Scheduler:    c.Scheduler(),
		Exporter:     c.Exporter(),
		Extractor:    c.Extractor(),
		Health:       c,
		Version:      version,
	}, kv)

	var webhook *httpapi.WebhookHandler
	if cfg.GitHub.Enabled {
		webhook = httpapi.NewWebhookHandler(httpapi.WebhookConfig{
			Secret:        cfg.GitHub.WebhookSecret,
			RatePerSecond: cfg.GitHub.RatePerSecond,
			Burst:         cfg.GitHub.Burst,
			AutoRun:       cfg.GitHub.AutoRun,
		}, c.Orchestrator(), c.Scheduler(), kv)
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, webhook, c.MetricsHandler(), kv)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Server exited successfully")
	return nil
}
