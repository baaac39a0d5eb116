package assistants

import (
	"github.com/effective-security/devassist/callbacks"
	"github.com/effective-security/devassist/config"
	"github.com/effective-security/devassist/engine/llmengine"
	"github.com/effective-security/devassist/pkg/llmfactory"
	"github.com/effective-security/devassist/pkg/llms"
)

// NewEngine returns the LLM decision engine for the config.
// The model is llm.engine_models[engine.name], engine.model
// overrides it, and the default provider is the fallback.
func NewEngine(cfg *config.EngineConfig, factory llmfactory.Factory, cb llmengine.Callback) (*llmengine.Engine, error) {
	var model llms.Model
	var err error
	if cfg.Model != "" {
		model, err = factory.ModelByName(cfg.Model)
	} else {
		model, err = factory.EngineModel(cfg.Name)
	}
	if err != nil {
		return nil, err
	}

	opts := []llmengine.Option{
		llmengine.WithName(cfg.Name),
		llmengine.WithMaxTokens(cfg.MaxTokens),
		llmengine.WithTemperature(cfg.Temperature),
		llmengine.WithCallback(cb),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, llmengine.WithSystemPrompt(cfg.SystemPrompt))
	}
	if cfg.Instructions != "" {
		opts = append(opts, llmengine.WithPromptInputs(map[string]any{
			"instructions": cfg.Instructions,
		}))
	}
	return llmengine.New(model, opts...)
}

// FromConfig returns the Assistant for the config,
// with the LLM engine built by the factory.
// The handler may be nil.
func FromConfig(cfg *config.Config, factory llmfactory.Factory, handler callbacks.Handler) (*Assistant, error) {
	dial, err := NewDialer(&cfg.Host, &cfg.Tools)
	if err != nil {
		return nil, err
	}

	var llmcb llmengine.Callback
	opts := []Option{
		WithStartupTimeout(cfg.Client.StartupTimeout.D()),
		WithCallTimeout(cfg.Client.CallTimeout.D()),
		WithMaxIterations(cfg.Client.MaxIterations),
	}
	if handler != nil {
		llmcb = handler
		opts = append(opts, WithCallback(handler))
	}

	engine, err := NewEngine(&cfg.Engine, factory, llmcb)
	if err != nil {
		return nil, err
	}
	return New(dial, engine, opts...), nil
}
