// Package orchestrator drives the decision loop: it asks the decision engine
// for the next step, executes the requested tool calls through the session
// and feeds the results back, until the engine answers or the iteration bound
// is reached.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "orchestrator")

// DefaultMaxIterations bounds the number of decision engine turns.
const DefaultMaxIterations = 10

// Config of the orchestrator.
type Config struct {
	// MaxIterations is the number of decision engine turns after which
	// the run stops with ErrMaxIterationsExceeded.
	MaxIterations int
	// CallTimeout is passed to each tool call, zero uses the session default.
	CallTimeout time.Duration
	Callback    Callback
}

// Option configures the orchestrator.
type Option func(*Config)

// WithMaxIterations sets the iteration bound.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithCallTimeout sets the tool call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithCallback sets the callback handler.
func WithCallback(cb Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}

// Orchestrator runs goals against one tool caller.
type Orchestrator struct {
	cfg    Config
	engine DecisionEngine
	caller ToolCaller
}

// New returns an orchestrator.
func New(engine DecisionEngine, caller ToolCaller, opts ...Option) *Orchestrator {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.MaxIterations = values.NumbersCoalesce(cfg.MaxIterations, DefaultMaxIterations)
	if cfg.Callback == nil {
		cfg.Callback = noop{}
	}
	return &Orchestrator{
		cfg:    cfg,
		engine: engine,
		caller: caller,
	}
}

// BudgetExceededAnswer returns the answer reported when the loop hits its bound.
func BudgetExceededAnswer(iterations int) string {
	return fmt.Sprintf("unable to complete within iteration budget (%d iterations)", iterations)
}

// Run executes the loop for the goal and returns the final answer.
//
// Tool failures are fed back to the engine. The run fails on engine errors,
// on a protocol error from the session (mcp.ErrProtocol), and at the
// iteration bound, where the budget message is returned together with
// mcp.ErrMaxIterationsExceeded.
func (o *Orchestrator) Run(ctx context.Context, goal string) (string, error) {
	engine := o.engine.Name()
	started := time.Now()
	defer metricskey.PerfOrchestratorRun.MeasureSince(started, engine)

	conv := &Conversation{
		ID:      uuid.NewString(),
		Goal:    goal,
		Started: started,
	}
	cb := o.cfg.Callback
	cb.OnRunStart(ctx, conv)

	fail := func(err error) (string, error) {
		metricskey.StatsRunsFailed.IncrCounter(1, engine)
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "run_failed",
			"run", conv.ID,
			"engine", engine,
			"turns", len(conv.Turns),
			"err", err.Error())
		cb.OnRunError(ctx, conv, err)
		return "", err
	}

	tools := o.caller.Tools()
	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		decision, err := o.decide(ctx, conv, tools)
		if err != nil {
			return fail(errors.WithMessagef(err, "decision engine %s", engine))
		}
		cb.OnDecision(ctx, conv, iteration, decision)

		if decision.IsFinal() {
			metricskey.StatsRunsCompleted.IncrCounter(1, engine)
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "completed",
				"run", conv.ID,
				"iterations", iteration,
				"answer", slices.StringUpto(decision.Answer, 64),
				"elapsed", time.Since(started).String())
			cb.OnRunEnd(ctx, conv, decision.Answer)
			return decision.Answer, nil
		}

		conv.Turns = append(conv.Turns, Turn{
			Iteration: iteration,
			Text:      decision.Answer,
		})
		turn := &conv.Turns[len(conv.Turns)-1]

		// strictly sequential, in the order emitted
		for i := range decision.Intents {
			intent := decision.Intents[i]
			if intent.ID == "" {
				intent.ID = fmt.Sprintf("call_%d_%d", iteration, i+1)
			}

			res, err := o.execute(ctx, conv, &intent)
			if err != nil {
				return fail(err)
			}
			turn.Steps = append(turn.Steps, Step{Intent: intent, Result: res})

			if res.Kind() == mcp.KindProtocolError {
				return fail(errors.Mark(errors.WithMessagef(res.Err(), "tool %q", intent.Name), mcp.ErrProtocol))
			}
		}
	}

	metricskey.StatsRunsIterationsExceeded.IncrCounter(1, engine)
	answer := BudgetExceededAnswer(o.cfg.MaxIterations)
	err := errors.WithMessagef(mcp.ErrMaxIterationsExceeded, "run %s stopped after %d iterations", conv.ID, o.cfg.MaxIterations)
	logger.ContextKV(ctx, xlog.WARNING,
		"status", "max_iterations_exceeded",
		"run", conv.ID,
		"engine", engine,
		"iterations", o.cfg.MaxIterations)
	cb.OnRunError(ctx, conv, err)
	return answer, err
}

func (o *Orchestrator) decide(ctx context.Context, conv *Conversation, tools []mcp.ToolSpec) (*Decision, error) {
	engine := o.engine.Name()
	started := time.Now()
	defer metricskey.PerfDecisionCall.MeasureSince(started, engine)

	decision, err := o.engine.Decide(ctx, conv, tools)
	if err != nil {
		metricskey.StatsDecisionCallsFailed.IncrCounter(1, engine)
		return nil, err
	}
	if decision == nil {
		metricskey.StatsDecisionCallsFailed.IncrCounter(1, engine)
		return nil, errors.New("no decision returned")
	}
	metricskey.StatsDecisionCallsSucceeded.IncrCounter(1, engine)
	return decision, nil
}

// execute dispatches one intent. The error is non-nil only when the
// session can not accept calls or the context is done.
func (o *Orchestrator) execute(ctx context.Context, conv *Conversation, intent *Intent) (*mcp.ToolCallResult, error) {
	cb := o.cfg.Callback
	cb.OnToolStart(ctx, conv, intent)

	var res *mcp.ToolCallResult
	if intent.ParseError != "" {
		res = mcp.Fail(mcp.KindInvalidArgument, "invalid arguments for %q: %s", intent.Name, intent.ParseError)
	} else {
		var err error
		res, err = o.caller.Call(ctx, intent.Name, intent.Arguments, o.cfg.CallTimeout)
		if err != nil {
			return nil, err
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_called",
		"run", conv.ID,
		"id", intent.ID,
		"tool", intent.Name,
		"kind", res.Kind())
	cb.OnToolEnd(ctx, conv, intent, res)
	return res, nil
}
