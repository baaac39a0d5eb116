package llms

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderOpenAI is the OpenAI Chat Completions API,
	// or a compatible endpoint.
	ProviderOpenAI ProviderType = "OPENAI"
)

// ErrUnsupportedProvider is returned for an unknown provider type.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ParseProviderType returns the provider type, case insensitive.
func ParseProviderType(s string) (ProviderType, error) {
	p := ProviderType(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case ProviderAnthropic, ProviderOpenAI:
		return p, nil
	}
	return "", errors.WithMessagef(ErrUnsupportedProvider, "%q", s)
}

// Model is an interface chat models implement.
type Model interface {
	// GetName returns the model name.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of
	// messages.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic chat generation
	CapabilityText Capability = 1 << iota
	// CapabilityFunctionCalling is native tool calling
	CapabilityFunctionCalling
	// CapabilityMultiToolCalling is more than one tool call per turn
	CapabilityMultiToolCalling
	// CapabilitySystemPrompt is system prompt support
	CapabilitySystemPrompt
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,

	ProviderAnthropic: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,
}

// ProviderCapabilities returns the capabilities of the provider.
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider has the capability.
func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
