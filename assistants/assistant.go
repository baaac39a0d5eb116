package assistants

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/effective-security/devassist/session"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "assistants")

// DefaultName is the client name reported to the host.
const DefaultName = "devassist-agent"

// Assistant runs goals against the tools of one host.
// Each call owns its session: connect, work, close.
type Assistant struct {
	cfg    Config
	dial   session.Dialer
	engine orchestrator.DecisionEngine
}

// New returns an Assistant. The engine may be nil when only
// Tools and Call are used.
func New(dial session.Dialer, engine orchestrator.DecisionEngine, opts ...Option) *Assistant {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Name = values.StringsCoalesce(cfg.Name, DefaultName)
	cfg.Version = values.StringsCoalesce(cfg.Version, "dev")

	return &Assistant{
		cfg:    cfg,
		dial:   dial,
		engine: engine,
	}
}

// Assist connects to the host, runs the loop for the goal and returns
// the final answer. The session is closed on every path.
//
// At the iteration bound the budget answer is returned together with
// mcp.ErrMaxIterationsExceeded.
func (a *Assistant) Assist(ctx context.Context, goal string) (string, error) {
	if a.engine == nil {
		return "", errors.New("assistant: decision engine is not configured")
	}
	started := time.Now()

	sess, err := a.connect(ctx)
	if err != nil {
		return "", err
	}
	defer a.close(ctx, sess)

	orch := orchestrator.New(a.engine, sess,
		orchestrator.WithMaxIterations(a.cfg.MaxIterations),
		orchestrator.WithCallTimeout(a.cfg.CallTimeout),
		orchestrator.WithCallback(a.cfg.Callback),
	)
	answer, err := orch.Run(ctx, goal)

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "assisted",
		"goal", slices.StringUpto(goal, 64),
		"answer", slices.StringUpto(answer, 64),
		"failed", err != nil,
		"elapsed", time.Since(started).String())
	return answer, err
}

// Tools returns the tools discovered on the host.
func (a *Assistant) Tools(ctx context.Context) ([]mcp.ToolSpec, error) {
	sess, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer a.close(ctx, sess)
	return sess.Tools(), nil
}

// Call invokes a single tool. Failures are returned in the result.
func (a *Assistant) Call(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResult, error) {
	sess, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer a.close(ctx, sess)
	return sess.Call(ctx, name, args, a.cfg.CallTimeout)
}

func (a *Assistant) connect(ctx context.Context) (*session.Session, error) {
	opts := []session.Option{
		session.WithName(a.cfg.Name),
		session.WithClientInfo(a.cfg.Name, a.cfg.Version),
	}
	if a.cfg.StartupTimeout > 0 {
		opts = append(opts, session.WithStartupTimeout(a.cfg.StartupTimeout))
	}
	if a.cfg.CallTimeout > 0 {
		opts = append(opts, session.WithCallTimeout(a.cfg.CallTimeout))
	}
	sess := session.New(a.dial, opts...)
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func (a *Assistant) close(ctx context.Context, sess *session.Session) {
	if err := sess.Close(); err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "close_failed", "err", err.Error())
	}
}
