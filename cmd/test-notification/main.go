package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/config"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/external/lark"
)

// Sends one message through the configured Lark notifier, independent of the
// rest of the system.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	title := flag.String("title", "Orchestrator test", "Message title")
	body := flag.String("body", "If you can read this, operator notifications are wired correctly.", "Message body")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Lark.AppID == "" || cfg.Lark.ReceiveID == "" {
		fmt.Fprintln(os.Stderr, "lark.app_id and lark.receive_id must be set")
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	notifier, err := lark.NewNotifier(lark.Config{
		AppID:         cfg.Lark.AppID,
		AppSecret:     cfg.Lark.AppSecret,
		ReceiveIDType: cfg.Lark.ReceiveIDType,
		ReceiveID:     cfg.Lark.ReceiveID,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create notifier: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Lark Notification Test ===")
	fmt.Printf("Receiver: %s %s\n", cfg.Lark.ReceiveIDType, cfg.Lark.ReceiveID)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := notifier.Notify(ctx, *title, *body); err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Message sent")
}
