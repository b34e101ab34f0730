package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/application/selector"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/external/openai"
)

// Checks the model classifier against a sample task and shows what the
// selector would pick with and without it.
func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	baseURL := flag.String("base-url", "", "OpenAI-compatible base URL")
	model := flag.String("model", "gpt-4o-mini", "Model name")
	promptsPath := flag.String("prompts", "", "Optional prompts.yaml override")
	text := flag.String("text", "Deploy the payment service to the production Kubernetes cluster", "Task text to classify")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided\n")
		fmt.Fprintf(os.Stderr, "Usage: test-classifier --key sk-... [--text \"...\"] [--prompts <path>]\n")
		os.Exit(1)
	}

	prompts := openai.DefaultPrompts()
	if *promptsPath != "" {
		prompts, err = openai.LoadPrompts(*promptsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: loading prompts: %v\n", err)
			os.Exit(1)
		}
	}

	reg := registry.Default(nil)
	llm := openai.NewClassifier(openai.Config{
		APIKey:  *apiKey,
		BaseURL: *baseURL,
		Model:   *model,
		Timeout: *timeout,
	}, reg.RoleIDs(), prompts, logger)

	fmt.Println("=== Classifier Connection Test ===")
	fmt.Printf("  Model: %s\n", *model)
	fmt.Printf("  Text:  %s\n\n", *text)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	result, ok, err := llm.Classify(ctx, *text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: model call failed after %v: %v\n", time.Since(start), err)
		os.Exit(1)
	}
	fmt.Printf("Model answered in %v (confident: %v)\n", time.Since(start), ok)

	keywordOnly := selector.New(reg, logger)
	withModel := selector.New(reg, logger, selector.WithClassifiers(llm, selector.NewKeywordClassifier()))

	out := map[string]interface{}{
		"model":        result,
		"model_used":   ok,
		"keyword_only": keywordOnly.Select(ctx, *text, ""),
		"with_model":   withModel.Select(ctx, *text, ""),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
