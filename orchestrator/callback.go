package orchestrator

import (
	"context"

	"github.com/effective-security/devassist/mcp"
)

// Callback receives the events of a run.
// Implementations are provided by the callbacks package.
type Callback interface {
	OnRunStart(ctx context.Context, conv *Conversation)
	OnRunEnd(ctx context.Context, conv *Conversation, answer string)
	OnRunError(ctx context.Context, conv *Conversation, err error)
	OnDecision(ctx context.Context, conv *Conversation, iteration int, decision *Decision)
	OnToolStart(ctx context.Context, conv *Conversation, intent *Intent)
	OnToolEnd(ctx context.Context, conv *Conversation, intent *Intent, result *mcp.ToolCallResult)
}

type noop struct{}

func (noop) OnRunStart(context.Context, *Conversation)                              {}
func (noop) OnRunEnd(context.Context, *Conversation, string)                        {}
func (noop) OnRunError(context.Context, *Conversation, error)                       {}
func (noop) OnDecision(context.Context, *Conversation, int, *Decision)              {}
func (noop) OnToolStart(context.Context, *Conversation, *Intent)                    {}
func (noop) OnToolEnd(context.Context, *Conversation, *Intent, *mcp.ToolCallResult) {}
