package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/engine/scripted"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.DEBUG)
	os.Exit(m.Run())
}

type fakeCaller struct {
	lock    sync.Mutex
	calls   []string
	results map[string]*mcp.ToolCallResult
	err     error
}

func (f *fakeCaller) Tools() []mcp.ToolSpec {
	return []mcp.ToolSpec{{Name: "search_repo"}, {Name: "run_tests"}}
}

func (f *fakeCaller) Call(_ context.Context, name string, _ map[string]any, _ time.Duration) (*mcp.ToolCallResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return mcp.Fail(mcp.KindUnknownTool, "tool %q not found", name), nil
}

type recorder struct {
	events []string
}

func (r *recorder) OnRunStart(_ context.Context, conv *orchestrator.Conversation) {
	r.events = append(r.events, "start:"+conv.Goal)
}

func (r *recorder) OnRunEnd(_ context.Context, _ *orchestrator.Conversation, answer string) {
	r.events = append(r.events, "end:"+answer)
}

func (r *recorder) OnRunError(_ context.Context, _ *orchestrator.Conversation, err error) {
	r.events = append(r.events, "error")
}

func (r *recorder) OnDecision(_ context.Context, _ *orchestrator.Conversation, iteration int, d *orchestrator.Decision) {
	r.events = append(r.events, fmt.Sprintf("decision:%d:%d", iteration, len(d.Intents)))
}

func (r *recorder) OnToolStart(_ context.Context, _ *orchestrator.Conversation, intent *orchestrator.Intent) {
	r.events = append(r.events, "tool:"+intent.Name)
}

func (r *recorder) OnToolEnd(_ context.Context, _ *orchestrator.Conversation, intent *orchestrator.Intent, res *mcp.ToolCallResult) {
	r.events = append(r.events, "result:"+intent.Name+":"+string(res.Kind()))
}

func TestRun_FinalAnswer(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	engine := scripted.New(scripted.Answer("nothing to do"))
	o := orchestrator.New(engine, caller)

	answer, err := o.Run(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "nothing to do", answer)
	assert.Empty(t, caller.calls)
	assert.Equal(t, 1, engine.Calls())
}

func TestRun_SequentialIntents(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{
		results: map[string]*mcp.ToolCallResult{
			"search_repo": mcp.Success(map[string]any{"matches": []any{}}),
			"run_tests":   mcp.Fail(mcp.KindHandlerError, "go: command not found"),
		},
	}

	var seen []orchestrator.Step
	engine := scripted.Func("test", func(_ context.Context, conv *orchestrator.Conversation, tools []mcp.ToolSpec) (*orchestrator.Decision, error) {
		assert.Len(t, tools, 2)
		if len(conv.Turns) == 0 {
			return &orchestrator.Decision{
				Answer: "searching first",
				Intents: []orchestrator.Intent{
					{Name: "search_repo", Arguments: map[string]any{"keyword": "TODO"}},
					{Name: "run_tests"},
					{ID: "bad", Name: "run_tests", ParseError: "unexpected end of JSON input"},
					{Name: "deploy"},
				},
			}, nil
		}
		seen = conv.Steps()
		return scripted.Answer("done with failures"), nil
	})

	rec := &recorder{}
	o := orchestrator.New(engine, caller, orchestrator.WithCallback(rec))
	answer, err := o.Run(context.Background(), "check the repo")
	require.NoError(t, err)
	assert.Equal(t, "done with failures", answer)

	// the intent with a parse error is not dispatched
	assert.Equal(t, []string{"search_repo", "run_tests", "deploy"}, caller.calls)

	require.Len(t, seen, 4)
	assert.Equal(t, "call_1_1", seen[0].Intent.ID)
	assert.True(t, seen[0].Result.IsSuccess())
	assert.Equal(t, mcp.KindHandlerError, seen[1].Result.Kind())
	assert.Equal(t, "bad", seen[2].Intent.ID)
	assert.Equal(t, mcp.KindInvalidArgument, seen[2].Result.Kind())
	assert.Equal(t, mcp.KindUnknownTool, seen[3].Result.Kind())

	assert.Equal(t, []string{
		"start:check the repo",
		"decision:1:4",
		"tool:search_repo", "result:search_repo:",
		"tool:run_tests", "result:run_tests:HandlerError",
		"tool:run_tests", "result:run_tests:InvalidArgument",
		"tool:deploy", "result:deploy:UnknownTool",
		"decision:2:0",
		"end:done with failures",
	}, rec.events)
}

func TestRun_MaxIterations(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{
		results: map[string]*mcp.ToolCallResult{
			"search_repo": mcp.Success("no matches"),
		},
	}
	engine := scripted.Never("search_repo", map[string]any{"keyword": "x"})
	o := orchestrator.New(engine, caller, orchestrator.WithMaxIterations(3))

	answer, err := o.Run(context.Background(), "loop forever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrMaxIterationsExceeded))
	assert.Equal(t, "unable to complete within iteration budget (3 iterations)", answer)
	assert.Equal(t, 3, engine.Calls())
	assert.Len(t, caller.calls, 3)
}

func TestRun_ProtocolError(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{
		results: map[string]*mcp.ToolCallResult{
			"run_tests": mcp.Fail(mcp.KindProtocolError, "malformed message"),
		},
	}
	engine := scripted.New(
		&orchestrator.Decision{Intents: []orchestrator.Intent{{Name: "run_tests"}, {Name: "search_repo"}}},
		scripted.Answer("unreachable"),
	)
	o := orchestrator.New(engine, caller)

	answer, err := o.Run(context.Background(), "run tests")
	require.Error(t, err)
	assert.Empty(t, answer)
	assert.True(t, errors.Is(err, mcp.ErrProtocol))
	assert.Equal(t, []string{"run_tests"}, caller.calls)
	assert.Equal(t, 1, engine.Calls())
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	t.Run("engine", func(t *testing.T) {
		o := orchestrator.New(scripted.New(), &fakeCaller{})
		_, err := o.Run(context.Background(), "x")
		assert.True(t, errors.Is(err, scripted.ErrExhausted))
	})

	t.Run("nil decision", func(t *testing.T) {
		o := orchestrator.New(scripted.New(nil), &fakeCaller{})
		_, err := o.Run(context.Background(), "x")
		assert.EqualError(t, err, "decision engine scripted: no decision returned")
	})

	t.Run("session", func(t *testing.T) {
		caller := &fakeCaller{err: errors.WithMessage(mcp.ErrSessionNotReady, "session is Closed")}
		o := orchestrator.New(scripted.Never("run_tests", nil), caller)
		_, err := o.Run(context.Background(), "x")
		assert.True(t, errors.Is(err, mcp.ErrSessionNotReady))
	})
}

func TestBudgetExceededAnswer(t *testing.T) {
	assert.Equal(t, "unable to complete within iteration budget (10 iterations)", orchestrator.BudgetExceededAnswer(orchestrator.DefaultMaxIterations))
}
