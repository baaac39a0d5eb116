// Package config provides the devassist configuration.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// EnvConfig is the environment variable with the config file path.
const EnvConfig = "DEVASSIST_CONFIG"

// Transports of the tool host.
const (
	TransportLocal = "local"
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportHTTP  = "http"
)

// Engines of the orchestrator.
const (
	EngineLLM = "llm"
)

const (
	DefaultTransport      = TransportLocal
	DefaultListenHost     = "127.0.0.1"
	DefaultListenPort     = 8765
	DefaultMaxIterations  = 10
	DefaultStartupTimeout = 10 * time.Second
	DefaultCallTimeout    = 60 * time.Second
)

// Config of devassist.
type Config struct {
	Host   HostConfig   `json:"host" yaml:"host"`
	Client ClientConfig `json:"client" yaml:"client"`
	Tools  ToolsConfig  `json:"tools" yaml:"tools"`
	Engine EngineConfig `json:"engine" yaml:"engine"`
	// LLM providers of the decision engine.
	LLM llmfactory.Config `json:"llm" yaml:"llm"`
}

// HostConfig specifies how the agent reaches the tool host,
// and how `serve` exposes it.
type HostConfig struct {
	// Transport is local|stdio|tcp|http.
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty" validate:"omitempty,oneof=local stdio tcp http"`
	// Command and Args start the stdio host, the current executable by default.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env is appended to the environment of the stdio host.
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`
	// Host and Port of the tcp or http host.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	// URL of the http host, built from Host and Port when empty.
	URL string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
}

// ClientConfig of the session and the orchestrator.
type ClientConfig struct {
	StartupTimeout Duration `json:"startup_timeout,omitempty" yaml:"startup_timeout,omitempty"`
	CallTimeout    Duration `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`
	MaxIterations  int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
}

// ToolsConfig of the built-in tools.
type ToolsConfig struct {
	// Root of the repository, the current directory by default.
	Root  string      `json:"root,omitempty" yaml:"root,omitempty"`
	Tests TestsConfig `json:"tests" yaml:"tests"`
}

// TestsConfig of run_tests.
type TestsConfig struct {
	// Command and its leading arguments, `go test -json` by default.
	Command  []string `json:"command,omitempty" yaml:"command,omitempty"`
	Packages string   `json:"packages,omitempty" yaml:"packages,omitempty"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// EngineConfig of the decision engine.
type EngineConfig struct {
	// Name is the engine name, used to look up its model in llm.engine_models.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Model overrides the model of the engine.
	Model        string  `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"omitempty,min=1"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	SystemPrompt string  `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// Instructions are added to the default system prompt.
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// Default returns the config with defaults.
func Default() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// Load the config from the file, environment variables in values are expanded.
// Without a file, the DEVASSIST_CONFIG environment variable is used,
// and without both, the defaults.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	file = values.StringsCoalesce(file, os.Getenv(EnvConfig))
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %q", file)
		}
		// relative root is resolved from the config folder
		if cfg.Tools.Root != "" && !filepath.IsAbs(cfg.Tools.Root) {
			cfg.Tools.Root = filepath.Join(filepath.Dir(file), cfg.Tools.Root)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills the empty values.
func (c *Config) SetDefaults() {
	c.Host.Transport = strings.ToLower(values.StringsCoalesce(c.Host.Transport, DefaultTransport))
	c.Host.Host = values.StringsCoalesce(c.Host.Host, os.Getenv("HOST"), DefaultListenHost)
	if c.Host.Port == 0 {
		c.Host.Port = values.NumbersCoalesce(envInt("PORT"), DefaultListenPort)
	}
	if c.Client.StartupTimeout == 0 {
		c.Client.StartupTimeout = Duration(DefaultStartupTimeout)
	}
	if c.Client.CallTimeout == 0 {
		c.Client.CallTimeout = Duration(DefaultCallTimeout)
	}
	c.Client.MaxIterations = values.NumbersCoalesce(c.Client.MaxIterations, DefaultMaxIterations)
	c.Tools.Root = values.StringsCoalesce(c.Tools.Root, ".")
	c.Engine.Name = values.StringsCoalesce(c.Engine.Name, EngineLLM)
}

// Validate the config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	return nil
}

// HTTPURL returns the URL of the http host.
func (c *HostConfig) HTTPURL() string {
	if c.URL != "" {
		return c.URL
	}
	return "http://" + c.Address() + "/mcp"
}

// Address returns host:port of the tcp or http host.
func (c *HostConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func envInt(name string) int {
	n, _ := strconv.Atoi(os.Getenv(name))
	return n
}
