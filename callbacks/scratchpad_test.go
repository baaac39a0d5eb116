package callbacks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct{}

func (fakeModel) GetName() string                    { return "fake-model" }
func (fakeModel) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (fakeModel) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

func TestScratchpad_StartRun_EndRun(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeVerbose)
	ctx := context.Background()
	conv := &orchestrator.Conversation{ID: "run1", Goal: "find TODOs"}

	sp.OnRunStart(ctx, conv)
	assert.Equal(t, "run1", sp.LastRunID())

	r := sp.runs["run1"]
	r.stats.ToolsCalls = 3
	r.stats.ToolsCallsFailed = 2
	r.stats.ToolNotFound = 1
	r.stats.LLMCalls = 1
	r.stats.TotalMessages = 4
	r.stats.LLMBytesOut = 10
	r.stats.LLMBytesIn = 11

	stats, buf := sp.EndRun("run1")
	require.NotNil(t, stats)
	assert.Equal(t, "find TODOs", stats.Goal)
	require.Contains(t, string(buf), "Run Started")
	require.Contains(t, string(buf), "Run Ended")
	require.Contains(t, string(buf), "Tool calls: 3, Failed: 2, Not Found: 1")
	require.Contains(t, string(buf), "Bytes Total: 21")
	_, ok := sp.runs["run1"]
	assert.False(t, ok)

	s2, _ := sp.EndRun("run1")
	assert.Nil(t, s2)
}

func TestScratchpad_getRun_nil(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getRun(nil))
	assert.Nil(t, sp.getRun(&orchestrator.Conversation{ID: "unknown"}))
}

func TestScratchpad_OnCallbacks(t *testing.T) {
	t.Parallel()

	TimeNowFn = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	defer func() { TimeNowFn = time.Now }()

	sp := NewScratchpad(ModeVerbose)
	ctx := context.Background()
	conv := &orchestrator.Conversation{ID: "run2", Goal: "run the tests"}
	model := fakeModel{}
	search := &orchestrator.Intent{ID: "call_1_1", Name: "search_repo", Arguments: map[string]any{"keyword": "TODO"}}
	deploy := &orchestrator.Intent{ID: "call_1_2", Name: "deploy"}
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "searching",
		GenerationInfo: map[string]any{"InputTokens": 7, "OutputTokens": 3, "TotalTokens": 10},
	}}}

	sp.OnRunStart(ctx, conv)
	sp.OnLLMCallStart(ctx, conv, model, []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "foo"),
		llms.MessageFromToolCalls("", llms.ToolCall{ID: "call_1_1", FunctionCall: &llms.FunctionCall{Name: "search_repo"}}),
	})
	sp.OnLLMCallEnd(ctx, conv, model, resp)
	sp.OnLLMParseError(ctx, conv, llms.ToolCall{ID: "call_1_3"}, errors.New("parseerr"))
	sp.OnDecision(ctx, conv, 1, &orchestrator.Decision{Answer: "searching", Intents: []orchestrator.Intent{*search, *deploy}})
	sp.OnToolStart(ctx, conv, search)
	sp.OnToolEnd(ctx, conv, search, mcp.Success("2 matches"))
	sp.OnToolStart(ctx, conv, deploy)
	sp.OnToolEnd(ctx, conv, deploy, mcp.Fail(mcp.KindUnknownTool, "unknown tool %q", "deploy"))
	sp.OnDecision(ctx, conv, 2, &orchestrator.Decision{Answer: "done"})
	sp.OnRunEnd(ctx, conv, "done")

	stats, output := sp.EndRun("run2")
	require.NotNil(t, stats)
	assert.EqualValues(t, 2, stats.Iterations)
	assert.EqualValues(t, 2, stats.ToolsCalls)
	assert.EqualValues(t, 1, stats.ToolsCallsSucceeded)
	assert.EqualValues(t, 1, stats.ToolsCallsFailed)
	assert.EqualValues(t, 1, stats.ToolNotFound)
	assert.EqualValues(t, 1, stats.LLMCalls)
	assert.EqualValues(t, 1, stats.LLMParseErrors)
	assert.EqualValues(t, 2, stats.TotalMessages)
	assert.EqualValues(t, 10, stats.LLMTotalTokens)
	assert.False(t, stats.Failed)

	outStr := string(output)
	assert.Contains(t, outStr, "2026-01-02 03:04:05 run2 *** Run Started ***")
	assert.Contains(t, outStr, "search_repo *** Tool Start ***")
	assert.Contains(t, outStr, `search_repo Input: {"keyword":"TODO"}`)
	assert.Contains(t, outStr, "search_repo Output: 2 matches")
	assert.Contains(t, outStr, "search_repo *** Tool End ***")
	assert.Contains(t, outStr, "deploy *** Tool Error ***")
	assert.Contains(t, outStr, "*** LLM Call *** fake-model model, 2 messages")
	assert.Contains(t, outStr, "10 total tokens")
	assert.Contains(t, outStr, "*** LLM Parse Error *** call_1_3 parseerr")
	assert.Contains(t, outStr, "Text: searching")
	assert.Contains(t, outStr, "*** Answer *** done")

	// no run
	sp.OnRunEnd(ctx, conv, "done")
	sp.OnRunError(ctx, conv, errors.New("fail"))
	sp.OnDecision(ctx, conv, 1, &orchestrator.Decision{})
	sp.OnToolStart(ctx, conv, search)
	sp.OnToolEnd(ctx, conv, search, mcp.Success("x"))
	sp.OnLLMCallStart(ctx, conv, model, nil)
	sp.OnLLMCallEnd(ctx, conv, model, resp)
	sp.OnLLMParseError(ctx, conv, llms.ToolCall{}, errors.New("parse2"))
}

func TestScratchpad_Failed(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	ctx := context.Background()
	conv := &orchestrator.Conversation{ID: "run3"}

	sp.OnRunStart(ctx, conv)
	sp.OnRunError(ctx, conv, errors.New("budget"))
	stats, output := sp.EndRun("run3")
	require.NotNil(t, stats)
	assert.True(t, stats.Failed)
	assert.Contains(t, string(output), "*** Error *** budget")
}
