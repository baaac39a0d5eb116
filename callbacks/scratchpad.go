package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/effective-security/devassist/pkg/llmutils"
)

var TimeNowFn = time.Now

type RunStats struct {
	RunID string
	Goal  string

	Duration            time.Duration
	Iterations          uint32
	TotalMessages       uint32
	LLMBytesOut         uint64
	LLMBytesIn          uint64
	LLMInputTokens      uint64
	LLMOutputTokens     uint64
	LLMTotalTokens      uint64
	LLMCalls            uint32
	LLMParseErrors      uint32
	ToolsCalls          uint32
	ToolsCallsSucceeded uint32
	ToolsCallsFailed    uint32
	ToolNotFound        uint32
	Failed              bool
}

// Scratchpad records a transcript and the stats of each run,
// keyed by the run ID.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	last string
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// EndRun returns the stats and the transcript of the run,
// and forgets it.
func (l *Scratchpad) EndRun(runID string) (*RunStats, []byte) {
	l.lock.Lock()
	run := l.runs[runID]
	delete(l.runs, runID)
	l.lock.Unlock()
	if run == nil {
		return nil, nil
	}

	stats := run.stats
	if stats.Duration == 0 {
		stats.Duration = time.Since(run.started)
	}

	run.print(fmt.Sprintf("Iterations: %d", stats.Iterations))
	run.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
		stats.ToolNotFound,
	))
	run.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Bytes Total: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.LLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMBytesOut+stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	run.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	return &stats, run.w.Bytes()
}

// LastRunID returns the ID of the last started run.
func (l *Scratchpad) LastRunID() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.last
}

func (l *Scratchpad) getRun(conv *orchestrator.Conversation) *run {
	if conv == nil {
		return nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[conv.ID]
}

func (l *Scratchpad) OnRunStart(_ context.Context, conv *orchestrator.Conversation) {
	r := &run{
		id: conv.ID,
		stats: RunStats{
			RunID: conv.ID,
			Goal:  conv.Goal,
		},
		started: time.Now(),
	}

	l.lock.Lock()
	l.runs[conv.ID] = r
	l.last = conv.ID
	l.lock.Unlock()

	r.print("*** Run Started ***")
	r.print("Goal:", conv.Goal)
}

func (l *Scratchpad) OnRunEnd(_ context.Context, conv *orchestrator.Conversation, answer string) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	run.stats.Duration = time.Since(run.started)
	run.print("*** Answer ***", answer)
}

func (l *Scratchpad) OnRunError(_ context.Context, conv *orchestrator.Conversation, err error) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	run.stats.Duration = time.Since(run.started)
	run.stats.Failed = true
	run.print("*** Error ***", err.Error())
}

func (l *Scratchpad) OnDecision(_ context.Context, conv *orchestrator.Conversation, iteration int, decision *orchestrator.Decision) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	atomic.StoreUint32(&run.stats.Iterations, uint32(iteration))
	run.print(fmt.Sprintf("*** Decision %d ***", iteration), fmt.Sprintf("%d tool calls", len(decision.Intents)))
	if l.mode == ModeVerbose && decision.Answer != "" && !decision.IsFinal() {
		run.print("Text:", decision.Answer)
	}
}

func (l *Scratchpad) OnToolStart(_ context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCalls, 1)
	run.print(intent.Name, "*** Tool Start ***")
	run.print(intent.Name, "Input:", llmutils.ToJSON(intent.Arguments))
}

func (l *Scratchpad) OnToolEnd(_ context.Context, conv *orchestrator.Conversation, intent *orchestrator.Intent, result *mcp.ToolCallResult) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	if !result.IsSuccess() {
		atomic.AddUint32(&run.stats.ToolsCallsFailed, 1)
		if result.Kind() == mcp.KindUnknownTool {
			atomic.AddUint32(&run.stats.ToolNotFound, 1)
		}
		run.print(intent.Name, "*** Tool Error ***", result.Failure.Error())
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(intent.Name, "Output:", result.String())
	}
	run.print(intent.Name, "*** Tool End ***")
}

func (l *Scratchpad) OnLLMCallStart(_ context.Context, conv *orchestrator.Conversation, model llms.Model, messages []llms.Message) {
	run := l.getRun(conv)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	atomic.AddUint32(&run.stats.LLMCalls, 1)
	count := uint32(len(messages))
	atomic.AddUint32(&run.stats.TotalMessages, count)

	run.print("*** LLM Call ***", fmt.Sprintf("%s model, %d messages", model.GetName(), count))
	if l.mode == ModeVerbose {
		run.print(printMessages(messages))
	}
}

func (l *Scratchpad) OnLLMCallEnd(_ context.Context, conv *orchestrator.Conversation, model llms.Model, resp *llms.ContentResponse) {
	run := l.getRun(conv)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))
	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&run.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&run.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&run.stats.LLMTotalTokens, uint64(tokensTotal))

	run.print("*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", model.GetName(), tokensIn, tokensOut, tokensTotal))
}

func (l *Scratchpad) OnLLMParseError(_ context.Context, conv *orchestrator.Conversation, call llms.ToolCall, err error) {
	run := l.getRun(conv)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.LLMParseErrors, 1)
	run.print("*** LLM Parse Error ***", call.ID, err.Error())
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

type run struct {
	id      string
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp runID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := TimeNowFn()
	ts := now.Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.id)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
