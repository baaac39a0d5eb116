// Package session implements the agent side of the tool protocol.
//
// A Session owns one transport channel. Connect performs the handshake and
// discovers the tools, then Call invokes them one at a time. The tool list is
// fixed for the lifetime of the session.
//
//	Disconnected -> Connecting -> Discovering -> Ready -> Closed
//
// Faulted is reachable from any state but Closed, and is terminal:
// a faulted session must be closed and a new one connected.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/internal/protocol"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/pkg/metricskey"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "session")

const (
	// DefaultStartupTimeout bounds Connect.
	DefaultStartupTimeout = 10 * time.Second
	// DefaultCallTimeout is used when Call is given no timeout.
	DefaultCallTimeout = 60 * time.Second
	// DefaultName identifies the session in logs and metrics.
	DefaultName = "devassist"
)

// State of the session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateDiscovering
	StateReady
	StateClosed
	StateFaulted
)

var stateNames = [...]string{"Disconnected", "Connecting", "Discovering", "Ready", "Closed", "Faulted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Dialer opens the transport channel to the tool host.
type Dialer func(ctx context.Context) (transport.Channel, error)

// Config of the session.
type Config struct {
	Name           string
	StartupTimeout time.Duration
	CallTimeout    time.Duration
	ClientInfo     protocol.Implementation
}

// Option configures the session.
type Option func(*Config)

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithStartupTimeout bounds the dial and discovery.
func WithStartupTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StartupTimeout = d
	}
}

// WithCallTimeout sets the default call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithClientInfo sets the client reported in the handshake.
func WithClientInfo(name, version string) Option {
	return func(c *Config) {
		c.ClientInfo = protocol.Implementation{Name: name, Version: version}
	}
}

// Session is a connection to a tool host.
// Calls are serialized: at most one request is in flight.
type Session struct {
	cfg  Config
	dial Dialer

	// callLock serializes Connect and Call
	callLock sync.Mutex

	lock   sync.Mutex
	state  State
	ch     transport.Channel
	tools  []mcp.ToolSpec
	byName map[string]*mcp.ToolSpec
	server protocol.Implementation

	nextID atomic.Uint64
}

// New returns a disconnected session.
func New(dial Dialer, opts ...Option) *Session {
	cfg := Config{
		Name:           DefaultName,
		StartupTimeout: DefaultStartupTimeout,
		CallTimeout:    DefaultCallTimeout,
		ClientInfo: protocol.Implementation{
			Name:    DefaultName,
			Version: "dev",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		cfg:  cfg,
		dial: dial,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Tools returns the discovered tools, in the host registration order.
func (s *Session) Tools() []mcp.ToolSpec {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]mcp.ToolSpec(nil), s.tools...)
}

// ServerInfo returns the host reported in the handshake.
func (s *Session) ServerInfo() protocol.Implementation {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.server
}

// transition moves to the next state, unless the session was closed
// or faulted in the meantime.
func (s *Session) transition(to State) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == StateClosed || s.state == StateFaulted {
		return false
	}
	s.state = to
	return true
}

// fault moves the session to Faulted, unless it is closed.
func (s *Session) fault(ctx context.Context, reason string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == StateClosed || s.state == StateFaulted {
		return
	}
	prev := s.state
	s.state = StateFaulted

	metricskey.StatsSessionsFaulted.IncrCounter(1, s.cfg.Name)
	logger.ContextKV(ctx, xlog.ERROR,
		"status", "faulted",
		"session", s.cfg.Name,
		"from", prev.String(),
		"reason", reason,
		"err", err.Error())
}

// Connect opens the channel, performs the handshake and discovers the tools.
// Any failure faults the session and is reported with mcp.ErrConnect.
func (s *Session) Connect(ctx context.Context) error {
	s.callLock.Lock()
	defer s.callLock.Unlock()

	s.lock.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.lock.Unlock()
		return errors.WithMessagef(mcp.ErrConnect, "session is %s", state)
	}
	s.state = StateConnecting
	s.lock.Unlock()

	started := time.Now()
	defer metricskey.PerfSessionConnect.MeasureSince(started, s.cfg.Name)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.WithMessagef(err, "host not ready within %s", s.cfg.StartupTimeout)
		}
		s.fault(ctx, "connect", err)
		return errors.Mark(err, mcp.ErrConnect)
	}

	metricskey.StatsSessionsConnected.IncrCounter(1, s.cfg.Name)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "ready",
		"session", s.cfg.Name,
		"server", s.server.Name,
		"tools", len(s.tools),
		"elapsed", time.Since(started).String())
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	ch, err := s.dial(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to open channel")
	}

	s.lock.Lock()
	s.ch = ch
	closed := s.state == StateClosed
	s.lock.Unlock()
	if closed {
		_ = ch.Close()
		return errors.WithStack(transport.ErrChannelClosed)
	}

	if !s.transition(StateDiscovering) {
		return errors.WithStack(transport.ErrChannelClosed)
	}

	var init protocol.InitializeResult
	err = s.roundTrip(ctx, ch, protocol.MethodInitialize, &protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      s.cfg.ClientInfo,
	}, &init)
	if err != nil {
		return errors.WithMessage(err, "initialize")
	}

	note, err := protocol.NewNotification(protocol.MethodInitialized, nil)
	if err != nil {
		return err
	}
	if err = ch.Send(ctx, note); err != nil {
		return errors.WithMessage(err, "initialized")
	}

	var list protocol.ListToolsResult
	if err = s.roundTrip(ctx, ch, protocol.MethodToolsList, nil, &list); err != nil {
		return errors.WithMessage(err, "tools/list")
	}

	tools := make([]mcp.ToolSpec, 0, len(list.Tools))
	byName := make(map[string]*mcp.ToolSpec, len(list.Tools))
	for _, ti := range list.Tools {
		spec := ti.ToolSpec
		if len(spec.Params) == 0 && len(ti.InputSchema) > 0 {
			// hosts may publish the JSON Schema only
			var js jsonschema.Schema
			if err = json.Unmarshal(ti.InputSchema, &js); err != nil {
				return errors.WithMessagef(protocol.ErrMalformed, "inputSchema of %q: %s", spec.Name, err.Error())
			}
			spec.Params = schema.Params(&js)
		}
		if err = spec.Validate(); err != nil {
			return errors.Mark(err, protocol.ErrMalformed)
		}
		if _, ok := byName[spec.Name]; ok {
			return errors.WithMessagef(protocol.ErrMalformed, "duplicate tool %q", spec.Name)
		}
		tools = append(tools, spec)
		byName[spec.Name] = &tools[len(tools)-1]
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != StateDiscovering {
		return errors.WithMessagef(transport.ErrChannelClosed, "session is %s", s.state)
	}
	s.tools = tools
	s.byName = byName
	s.server = init.ServerInfo
	s.state = StateReady
	return nil
}

// roundTrip sends a request and waits for the response with the same id.
// Responses to abandoned requests and server notifications are dropped.
func (s *Session) roundTrip(ctx context.Context, ch transport.Channel, method string, params, out any) error {
	id := s.nextID.Add(1)
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	if err = ch.Send(ctx, req); err != nil {
		return err
	}

	for {
		frame, err := ch.Receive(ctx)
		if err != nil {
			return err
		}
		resp, err := protocol.DecodeResponse(frame)
		if err != nil {
			if errors.Is(err, protocol.ErrNotification) {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "notification_dropped", "method", method)
				continue
			}
			return err
		}
		if !resp.HasID(id) {
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "stale_response",
				"expected", id,
				"id", string(resp.ID))
			continue
		}
		return resp.DecodeResult(out)
	}
}

// Call invokes the tool and waits up to timeout for the result.
// If timeout is zero, the configured call timeout is used.
//
// Tool failures are returned as the result. On timeout the request is
// abandoned and a Timeout failure is returned, the session stays Ready.
// A broken exchange faults the session and returns a ProtocolError failure.
// The error is non-nil only if the session is not Ready or ctx is done.
func (s *Session) Call(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.ToolCallResult, error) {
	s.callLock.Lock()
	defer s.callLock.Unlock()

	s.lock.Lock()
	state, ch := s.state, s.ch
	spec := s.byName[name]
	s.lock.Unlock()

	if state != StateReady {
		return nil, errors.WithMessagef(mcp.ErrSessionNotReady, "session is %s", state)
	}

	// reject what the host would reject, without a round trip
	if spec == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return mcp.Fail(mcp.KindUnknownTool, "tool %q not found", name), nil
	}
	if _, failure := mcp.ValidateArguments(spec, args); failure != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(failure.Kind))
		return mcp.FailWith(failure), nil
	}

	if timeout <= 0 {
		timeout = s.cfg.CallTimeout
	}

	started := time.Now()
	defer metricskey.PerfSessionCall.MeasureSince(started, name)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wire protocol.CallToolResult
	err := s.roundTrip(callCtx, ch, protocol.MethodToolsCall, &protocol.CallToolParams{
		Name:      name,
		Arguments: args,
	}, &wire)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		if callCtx.Err() != nil {
			metricskey.StatsToolCallsTimedOut.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "timeout",
				"tool", name,
				"timeout", timeout.String())
			return mcp.Fail(mcp.KindTimeout, "tool %q did not respond within %s", name, timeout), nil
		}
		return s.protocolFailure(ctx, name, err), nil
	}

	res, err := wire.ToolCallResult()
	if err != nil {
		return s.protocolFailure(ctx, name, err), nil
	}

	if res.IsSuccess() {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	} else {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(res.Kind()))
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "called",
		"tool", name,
		"kind", res.Kind(),
		"result", slices.StringUpto(res.String(), 128),
		"elapsed", time.Since(started).String())
	return res, nil
}

func (s *Session) protocolFailure(ctx context.Context, name string, err error) *mcp.ToolCallResult {
	s.fault(ctx, "call "+name, err)
	metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(mcp.KindProtocolError))
	return mcp.Fail(mcp.KindProtocolError, "%s", err.Error())
}

// Close releases the channel. It is safe to call more than once and from
// any state. A pending Call is unblocked.
func (s *Session) Close() error {
	s.lock.Lock()
	if s.state == StateClosed {
		s.lock.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateClosed
	ch := s.ch
	s.lock.Unlock()

	logger.KV(xlog.DEBUG, "status", "closed", "session", s.cfg.Name, "from", prev.String())
	if ch != nil {
		return ch.Close()
	}
	return nil
}
