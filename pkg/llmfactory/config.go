package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`
	// EngineModels specifies the mapping of decision engines to models.
	// key is the engine name, value is the list of preferred models.
	// Use `default: [<model_name>]` as the default model for engines.
	EngineModels map[string][]string `json:"engine_models,omitempty" yaml:"engine_models,omitempty"`
}

// ProviderConfig for a chat model provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Type specifies the API: ANTHROPIC|OPENAI
	Type            string   `json:"type" yaml:"type" validate:"required,oneof=ANTHROPIC OPENAI anthropic openai"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Organization    string   `json:"organization,omitempty" yaml:"organization,omitempty"`
	DefaultModel    string   `json:"default_model" yaml:"default_model" validate:"required"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
}

// FindModel returns the first of the models available at the provider,
// or the provider default.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if model == c.DefaultModel || slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file, environment variables in values are expanded.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
