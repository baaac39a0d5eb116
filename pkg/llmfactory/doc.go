// Package llmfactory creates chat models from the providers configuration,
// with model selection by name, provider type and decision engine.
package llmfactory
