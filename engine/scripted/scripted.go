// Package scripted provides a deterministic decision engine that replays
// prepared decisions. It is used to drive the loop without a language model.
package scripted

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
)

// DefaultName of the engine.
const DefaultName = "scripted"

// ErrExhausted is returned when the script has no more decisions.
var ErrExhausted = errors.New("script exhausted")

// DecideFunc computes the next decision.
type DecideFunc func(ctx context.Context, conv *orchestrator.Conversation, tools []mcp.ToolSpec) (*orchestrator.Decision, error)

// Engine is a scripted decision engine.
type Engine struct {
	name   string
	decide DecideFunc

	lock  sync.Mutex
	calls int
}

var _ orchestrator.DecisionEngine = (*Engine)(nil)

// New returns an engine replaying the decisions in order.
func New(decisions ...*orchestrator.Decision) *Engine {
	var next int
	var lock sync.Mutex
	return Func(DefaultName, func(context.Context, *orchestrator.Conversation, []mcp.ToolSpec) (*orchestrator.Decision, error) {
		lock.Lock()
		defer lock.Unlock()
		if next >= len(decisions) {
			return nil, errors.WithStack(ErrExhausted)
		}
		d := decisions[next]
		next++
		return d, nil
	})
}

// Func returns an engine backed by the function.
func Func(name string, fn DecideFunc) *Engine {
	return &Engine{
		name:   name,
		decide: fn,
	}
}

// Never returns an engine that keeps calling the tool and never answers.
func Never(tool string, args map[string]any) *Engine {
	return Func("never", func(context.Context, *orchestrator.Conversation, []mcp.ToolSpec) (*orchestrator.Decision, error) {
		return Call(tool, args), nil
	})
}

// Call returns a decision with a single intent.
func Call(tool string, args map[string]any) *orchestrator.Decision {
	return &orchestrator.Decision{
		Intents: []orchestrator.Intent{{Name: tool, Arguments: args}},
	}
}

// Answer returns a final decision.
func Answer(text string) *orchestrator.Decision {
	return &orchestrator.Decision{Answer: text}
}

func (e *Engine) Name() string {
	return e.name
}

// Decide implements orchestrator.DecisionEngine.
func (e *Engine) Decide(ctx context.Context, conv *orchestrator.Conversation, tools []mcp.ToolSpec) (*orchestrator.Decision, error) {
	e.lock.Lock()
	e.calls++
	e.lock.Unlock()
	return e.decide(ctx, conv, tools)
}

// Calls returns the number of Decide calls.
func (e *Engine) Calls() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.calls
}
