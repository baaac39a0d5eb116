// Package callbacks provides handlers for the run events of the
// orchestrator and the LLM events of the decision engine.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/devassist/engine/llmengine"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/llmutils"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// Handler receives both run and LLM events.
type Handler interface {
	orchestrator.Callback
	llmengine.Callback
}

// ensure that the callbacks implement the correct interfaces
var (
	_ Handler = (*Noop)(nil)
	_ Handler = (*Printer)(nil)
	_ Handler = (*PackageLogger)(nil)
	_ Handler = (*Fanout)(nil)
	_ Handler = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []Handler
}

func NewFanout(callbacks ...Handler) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback Handler) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnRunStart(ctx context.Context, conv *orchestrator.Conversation) {
	for _, callback := range l.callbacks {
		callback.OnRunStart(ctx, conv)
	}
}

func (l *Fanout) OnRunEnd(ctx context.Context, conv *orchestrator.Conversation, answer string) {
	for _, callback := range l.callbacks {
		callback.OnRunEnd(ctx, conv, answer)
	}
}

func (l *Fanout) OnRunError(ctx context.Context, conv *orchestrator.Conversation, err error) {
	for _, callback := range l.callbacks {
		callback.OnRunError(ctx, conv, err)
	}
}

func (l *Fanout) OnDecision(ctx context.Context, conv *orchestrator.Conversation, iteration int, decision *orchestrator.Decision) {
	for _, callback := range l.callbacks {
		callback.OnDecision(ctx, conv, iteration, decision)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, conv, intent)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent, result *mcp.ToolCallResult) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, conv, intent, result)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, conv, model, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, conv, model, resp)
	}
}

func (l *Fanout) OnLLMParseError(ctx context.Context, conv *orchestrator.Conversation, call llms.ToolCall, err error) {
	for _, callback := range l.callbacks {
		callback.OnLLMParseError(ctx, conv, call, err)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRunStart(context.Context, *orchestrator.Conversation)        {}
func (l *Noop) OnRunEnd(context.Context, *orchestrator.Conversation, string)  {}
func (l *Noop) OnRunError(context.Context, *orchestrator.Conversation, error) {}
func (l *Noop) OnToolStart(context.Context, *orchestrator.Conversation, *orchestrator.Intent) {
}
func (l *Noop) OnDecision(context.Context, *orchestrator.Conversation, int, *orchestrator.Decision) {
}
func (l *Noop) OnToolEnd(context.Context, *orchestrator.Conversation, *orchestrator.Intent, *mcp.ToolCallResult) {
}
func (l *Noop) OnLLMCallStart(context.Context, *orchestrator.Conversation, llms.Model, []llms.Message) {
}
func (l *Noop) OnLLMCallEnd(context.Context, *orchestrator.Conversation, llms.Model, *llms.ContentResponse) {
}
func (l *Noop) OnLLMParseError(context.Context, *orchestrator.Conversation, llms.ToolCall, error) {
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRunStart(_ context.Context, conv *orchestrator.Conversation) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Start: %s\n", conv.ID)
	fmt.Fprintf(l.Out, "Goal: %s\n", conv.Goal)
}

func (l *Printer) OnRunEnd(_ context.Context, conv *orchestrator.Conversation, answer string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run End: %s, %d turns\n", conv.ID, len(conv.Turns))
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Answer: %s\n", answer)
	}
}

func (l *Printer) OnRunError(_ context.Context, conv *orchestrator.Conversation, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Error: %s: %s\n", conv.ID, err.Error())
}

func (l *Printer) OnDecision(_ context.Context, _ *orchestrator.Conversation, iteration int, decision *orchestrator.Decision) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Decision %d: %d tool calls\n", iteration, len(decision.Intents))
	if l.Mode == ModeVerbose && decision.Answer != "" {
		fmt.Fprintf(l.Out, "Text: %s\n", decision.Answer)
	}
}

func (l *Printer) OnToolStart(_ context.Context, _ *orchestrator.Conversation, intent *orchestrator.Intent) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s (%s)\n", intent.Name, intent.ID)
	fmt.Fprintf(l.Out, "Input: %s\n", llmutils.ToJSON(intent.Arguments))
}

func (l *Printer) OnToolEnd(_ context.Context, _ *orchestrator.Conversation, intent *orchestrator.Intent, result *mcp.ToolCallResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !result.IsSuccess() {
		fmt.Fprintf(l.Out, "Tool Error: %s (%s): %s\n", intent.Name, intent.ID, result.Failure.Error())
		return
	}
	fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", intent.Name, intent.ID)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", result.String())
	}
}

func (l *Printer) OnLLMCallStart(_ context.Context, _ *orchestrator.Conversation, model llms.Model, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s model, %d messages\n", model.GetName(), len(messages))
}

func (l *Printer) OnLLMCallEnd(_ context.Context, _ *orchestrator.Conversation, model llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call End: %s model, %d choices\n", model.GetName(), len(resp.Choices))
}

func (l *Printer) OnLLMParseError(_ context.Context, _ *orchestrator.Conversation, call llms.ToolCall, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Parse Error: %s: %s\n", call.ID, err.Error())
	if call.FunctionCall != nil {
		fmt.Fprintf(l.Out, "Arguments: %s\n", call.FunctionCall.Arguments)
	}
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnRunStart(ctx context.Context, conv *orchestrator.Conversation) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_start",
		"run", conv.ID,
		"goal", conv.Goal,
	)
}

func (l *PackageLogger) OnRunEnd(ctx context.Context, conv *orchestrator.Conversation, answer string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_end",
		"run", conv.ID,
		"turns", len(conv.Turns),
		"answer", slices.StringUpto(answer, 256),
	)
}

func (l *PackageLogger) OnRunError(ctx context.Context, conv *orchestrator.Conversation, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "run_error",
		"run", conv.ID,
		"turns", len(conv.Turns),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnDecision(ctx context.Context, conv *orchestrator.Conversation, iteration int, decision *orchestrator.Decision) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "decision",
		"run", conv.ID,
		"iteration", iteration,
		"intents", len(decision.Intents),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"run", conv.ID,
		"id", intent.ID,
		"tool", intent.Name,
		"input", intent.Arguments,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent, result *mcp.ToolCallResult) {
	if !result.IsSuccess() {
		l.logger.ContextKV(ctx, xlog.ERROR,
			"event", "tool_error",
			"run", conv.ID,
			"id", intent.ID,
			"tool", intent.Name,
			"kind", result.Kind(),
			"err", result.Failure.Error(),
		)
		return
	}
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"run", conv.ID,
		"id", intent.ID,
		"tool", intent.Name,
		"output", slices.StringUpto(result.String(), 256),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"run", conv.ID,
		"model", model.GetName(),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, conv *orchestrator.Conversation, model llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"run", conv.ID,
		"model", model.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnLLMParseError(ctx context.Context, conv *orchestrator.Conversation, call llms.ToolCall, err error) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_parse_error",
		"run", conv.ID,
		"id", call.ID,
		"err", err.Error(),
	)
}
