package toolhost

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// Handler executes a tool with validated arguments.
// Returning an *mcp.Failure selects the reported kind,
// any other error is reported as HandlerError.
type Handler func(ctx context.Context, args Args) (any, error)

type entry struct {
	spec    mcp.ToolSpec
	handler Handler
}

// Registry holds the tools in registration order.
// It is safe for concurrent use.
type Registry struct {
	lock   sync.RWMutex
	tools  []*entry
	byName map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
	}
}

// Register adds a tool. Names are unique: a second registration
// fails with mcp.ErrDuplicateToolName.
func (r *Registry) Register(spec mcp.ToolSpec, handler Handler) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return errors.WithMessagef(mcp.ErrInvalidToolSpec, "tool %q: handler is required", spec.Name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.byName[spec.Name]; ok {
		return errors.WithMessagef(mcp.ErrDuplicateToolName, "tool %q", spec.Name)
	}

	// specs are immutable once registered
	spec.Params = append([]mcp.ParamSpec(nil), spec.Params...)
	e := &entry{spec: spec, handler: handler}
	r.tools = append(r.tools, e)
	r.byName[spec.Name] = e

	logger.KV(xlog.DEBUG, "status", "registered", "tool", spec.Name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(spec mcp.ToolSpec, handler Handler) {
	if err := r.Register(spec, handler); err != nil {
		panic(err)
	}
}

// List returns the tool specs in registration order.
func (r *Registry) List() []mcp.ToolSpec {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]mcp.ToolSpec, len(r.tools))
	for i, e := range r.tools {
		list[i] = e.spec
	}
	return list
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tools)
}

// Invoke validates the arguments and runs the handler synchronously.
// It never panics: handler faults are returned as HandlerError failures.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) *mcp.ToolCallResult {
	r.lock.RLock()
	e, ok := r.byName[name]
	r.lock.RUnlock()

	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING, "status", "tool_not_found", "tool", name)
		return mcp.Fail(mcp.KindUnknownTool, "tool %q not found, available tools: %v", name, r.names())
	}

	validated, failure := mcp.ValidateArguments(&e.spec, args)
	if failure != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(failure.Kind))
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "invalid_argument",
			"tool", name,
			"param", failure.Param,
			"err", failure.Message)
		return mcp.FailWith(failure)
	}

	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, name)

	val, err := call(ctx, e, validated)
	if err != nil {
		f, ok := mcp.AsFailure(err)
		if !ok {
			f = mcp.NewFailure(mcp.KindHandlerError, "%s", err.Error())
		}
		metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(f.Kind))
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "tool_call_failed",
			"tool", name,
			"kind", f.Kind,
			"err", slices.StringUpto(f.Message, 256))
		return mcp.FailWith(f)
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_call_succeeded",
		"tool", name,
		"elapsed", time.Since(started).String())
	return mcp.Success(val)
}

func call(ctx context.Context, e *entry, args Args) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "tool_panic",
				"tool", e.spec.Name,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()))
			res = nil
			err = errors.Errorf("tool %q panicked: %v", e.spec.Name, rec)
		}
	}()
	return e.handler(ctx, args)
}

func (r *Registry) names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, len(r.tools))
	for i, e := range r.tools {
		names[i] = e.spec.Name
	}
	return names
}
