package assistants

import (
	"time"

	"github.com/effective-security/devassist/orchestrator"
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

// Config of the Assistant.
type Config struct {
	// Name of the client reported to the host, and used in logs.
	Name    string
	Version string
	// StartupTimeout bounds connect and tool discovery.
	StartupTimeout time.Duration
	// CallTimeout bounds each tool call.
	CallTimeout time.Duration
	// MaxIterations bounds the decision loop.
	MaxIterations int
	// Callback receives the run events.
	Callback orchestrator.Callback
}

// WithName sets the client name.
func WithName(name, version string) Option {
	return func(c *Config) {
		c.Name = name
		c.Version = version
	}
}

func WithStartupTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StartupTimeout = d
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithMaxIterations sets the decision loop bound.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithCallback sets the run callback.
func WithCallback(cb orchestrator.Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}
