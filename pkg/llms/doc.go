// Package llms provides the chat model abstraction used by the LLM decision
// engine: messages with text, tool call and tool result parts, call options
// with function definitions, and the content response.
//
// Provider implementations live in the anthropic and openai subpackages.
package llms
