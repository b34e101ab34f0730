package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
)

// SourceLLM marks classifications produced by the model
const SourceLLM = "llm"

// Config holds the classifier's connection settings
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MinConfidence float64
	Timeout       time.Duration
}

// Classifier implements port.Classifier with a chat completion model. It
// abstains on low confidence or unknown roles so the selector can fall back.
type Classifier struct {
	client        *openai.Client
	model         string
	minConfidence float64
	roles         []string
	prompts       *PromptConfig
	logger        *zap.Logger
}

type classifyResponse struct {
	Role       string  `json:"role"`
	Confidence float64 `json:"confidence"`
}

// NewClassifier creates a model-backed classifier for the given role ids
func NewClassifier(cfg Config, roles []string, prompts *PromptConfig, logger *zap.Logger) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Classifier{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         model,
		minConfidence: cfg.MinConfidence,
		roles:         roles,
		prompts:       prompts,
		logger:        logger,
	}
}

// Name identifies the classifier in logs
func (c *Classifier) Name() string {
	return SourceLLM
}

// Classify asks the model for a role
func (c *Classifier) Classify(ctx context.Context, text string) (port.Classification, bool, error) {
	if strings.TrimSpace(text) == "" {
		return port.Classification{}, false, nil
	}

	prompt, err := renderTemplate(c.prompts.Classify.UserTemplate, map[string]interface{}{
		"Roles": c.roles,
		"Task":  text,
	})
	if err != nil {
		return port.Classification{}, false, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.prompts.Classify.Temperature,
		MaxTokens:   c.prompts.Classify.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Classify.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", zap.Error(err))
		return port.Classification{}, false, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return port.Classification{}, false, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var result classifyResponse
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &result) != nil {
			c.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return port.Classification{}, false, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	role := strings.ToLower(strings.TrimSpace(result.Role))
	if !c.known(role) {
		c.logger.Debug("Model suggested unknown role", zap.String("role", result.Role))
		return port.Classification{}, false, nil
	}
	if result.Confidence < c.minConfidence {
		c.logger.Debug("Model confidence below threshold",
			zap.String("role", role),
			zap.Float64("confidence", result.Confidence))
		return port.Classification{}, false, nil
	}

	return port.Classification{RoleID: role, Confidence: result.Confidence, Source: SourceLLM}, true, nil
}

func (c *Classifier) known(role string) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
