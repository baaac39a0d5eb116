package orchestrator

import (
	"context"
	"time"

	"github.com/effective-security/devassist/mcp"
)

// Intent is a tool call requested by the decision engine.
// Its arguments are untrusted and validated before dispatch.
type Intent struct {
	// ID correlates the intent with its result in the engine transcript.
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// ParseError is set when the engine output could not be decoded into arguments.
	// Such intents are not dispatched and yield an InvalidArgument failure.
	ParseError string `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
}

// Decision is the output of one decision engine turn:
// either a final answer, or one or more intents.
type Decision struct {
	// Answer is the final answer, or the engine commentary accompanying intents.
	Answer  string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Intents []Intent `json:"intents,omitempty" yaml:"intents,omitempty"`
}

// IsFinal returns true if the decision carries no intents.
func (d *Decision) IsFinal() bool {
	return len(d.Intents) == 0
}

// Step is an executed intent and its result.
type Step struct {
	Intent Intent              `json:"intent" yaml:"intent"`
	Result *mcp.ToolCallResult `json:"result" yaml:"result"`
}

// Turn is one iteration of the loop.
type Turn struct {
	Iteration int `json:"iteration" yaml:"iteration"`
	// Text is the engine commentary that came with the intents.
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Conversation is the state of one run. It only grows during the run
// and is discarded at the end.
type Conversation struct {
	ID      string    `json:"id" yaml:"id"`
	Goal    string    `json:"goal" yaml:"goal"`
	Started time.Time `json:"started" yaml:"started"`
	Turns   []Turn    `json:"turns,omitempty" yaml:"turns,omitempty"`
}

// Steps returns all executed steps in order.
func (c *Conversation) Steps() []Step {
	var list []Step
	for _, t := range c.Turns {
		list = append(list, t.Steps...)
	}
	return list
}

// DecisionEngine maps the goal, the tools and the conversation so far
// to the next decision.
type DecisionEngine interface {
	// Name identifies the engine in logs and metrics.
	Name() string
	Decide(ctx context.Context, conv *Conversation, tools []mcp.ToolSpec) (*Decision, error)
}

// ToolCaller executes tool calls. It is implemented by session.Session.
type ToolCaller interface {
	Tools() []mcp.ToolSpec
	Call(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.ToolCallResult, error)
}
