package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the role classification prompt and its model parameters
type PromptConfig struct {
	Classify struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"classify"`
}

// DefaultPrompts is used when no prompt file is configured
func DefaultPrompts() *PromptConfig {
	var p PromptConfig
	p.Classify.Temperature = 0
	p.Classify.MaxTokens = 100
	p.Classify.System = "You route engineering tasks to exactly one team role. " +
		"Respond only with JSON of the form {\"role\": \"<role>\", \"confidence\": <0..1>}."
	p.Classify.UserTemplate = `Roles:
{{- range .Roles }}
- {{ . }}
{{- end }}

Task:
{{ .Task }}

Pick the single role that should do this task first.`
	return &p
}

// LoadPrompts loads prompt configuration from YAML file
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
