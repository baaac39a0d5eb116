package llmfactory

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/llms/anthropic"
	"github.com/effective-security/devassist/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory is the interface for creating and managing LLM models.
// Models are created on first use, so a missing API key only fails
// the caller that needs the model.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, ANTHROPIC or OPENAI.
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if the model is not found, it will return the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// EngineModel returns the model for the decision engine.
	EngineModel(engineName string, preferredModels ...string) (llms.Model, error)
}

// Load returns the factory for the config file
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	engineModels    map[string][]string
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:          cfg,
		byType:       make(map[string]llms.Model),
		byName:       make(map[string]llms.Model),
		engineModels: make(map[string][]string),
	}

	for k, v := range cfg.EngineModels {
		f.engineModels[k] = slices.Clone(v)
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}

	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// CreateLLM creates the model of the provider.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType, err := llms.ParseProviderType(cfg.Type)
	if err != nil {
		return nil, err
	}
	model := cfg.FindModel(preferredModels...)

	switch provType {
	case llms.ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(model)}
		if cfg.Token != "" {
			opts = append(opts, openai.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Organization != "" {
			opts = append(opts, openai.WithOrganization(cfg.Organization))
		}
		return openai.New(opts...)
	default:
		opts := []anthropic.Option{anthropic.WithModel(model)}
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	}
}

// DefaultModel returns the default model of the default provider
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	pt, err := llms.ParseProviderType(providerType)
	if err != nil {
		return nil, errors.Errorf("provider not found for type: %s", providerType)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[string(pt)]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		cpt, _ := llms.ParseProviderType(cfg.Type)
		if cpt != pt {
			continue
		}
		model, err := NewLLM(cfg)
		if err != nil {
			return nil, err
		}

		logger.KV(xlog.DEBUG,
			"status", "created_llm",
			"type", cfg.Type,
			"name", cfg.Name,
			"model", model.GetName())

		f.byType[string(pt)] = model
		return model, nil
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if modelName != cfg.DefaultModel && !slices.Contains(cfg.AvailableModels, modelName) {
				continue
			}
			model, err := NewLLM(cfg, modelName)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "NewLLM",
					"type", cfg.Type,
					"model", modelName,
					"err", err.Error())
				continue
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.Type,
				"name", cfg.Name,
				"model", modelName)

			f.byName[modelName] = model
			return model, nil
		}
	}
	return f.DefaultModel()
}

// EngineModel returns the model for the decision engine.
func (f *factory) EngineModel(engineName string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.engineModels[engineName]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.engineModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}
