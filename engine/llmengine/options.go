package llmengine

import (
	"context"

	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/pkg/llms"
)

const (
	// DefaultName of the engine.
	DefaultName = "llm"
	// DefaultMaxTokens is the completion limit of one turn.
	DefaultMaxTokens = 4096
	// DefaultMaxRetries is the number of attempts on an empty response.
	DefaultMaxRetries = 2
)

// Callback receives the LLM events of the engine.
type Callback interface {
	OnLLMCallStart(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, resp *llms.ContentResponse)
	OnLLMParseError(ctx context.Context, conv *orchestrator.Conversation, call llms.ToolCall, err error)
}

// Config of the engine.
type Config struct {
	Name         string
	SystemPrompt string
	// PromptInputs are passed to the system prompt template.
	PromptInputs map[string]any
	MaxTokens    int
	Temperature  float64
	MaxRetries   int
	// ToolChoice is one of llms.ToolChoice* values, auto by default.
	ToolChoice string
	Callback   Callback
}

// Option configures the engine.
type Option func(*Config)

// WithName sets the engine name used in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithSystemPrompt sets the system prompt template.
// The template receives goal, tools, date and the prompt inputs.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithPromptInputs adds inputs to the system prompt template.
func WithPromptInputs(inputs map[string]any) Option {
	return func(c *Config) {
		c.PromptInputs = inputs
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxRetries sets the number of attempts on an empty response.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

func WithToolChoice(choice string) Option {
	return func(c *Config) {
		c.ToolChoice = choice
	}
}

// WithCallback sets the LLM callback handler.
func WithCallback(cb Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}
