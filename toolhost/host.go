package toolhost

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/internal/protocol"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// DefaultServerName is reported in the initialize handshake.
const DefaultServerName = "devassist"

// Option configures the Host.
type Option func(*Host)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(h *Host) {
		h.info = protocol.Implementation{Name: name, Version: version}
	}
}

// Host serves the registry over the wire protocol.
// Requests are handled one at a time in arrival order.
type Host struct {
	registry *Registry
	info     protocol.Implementation
}

// NewHost returns a host for the registry.
func NewHost(registry *Registry, opts ...Option) *Host {
	h := &Host{
		registry: registry,
		info: protocol.Implementation{
			Name:    DefaultServerName,
			Version: "dev",
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the served registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// Serve handles messages from the channel until it is closed or the context
// is cancelled. A closed channel is a normal shutdown and returns nil.
func (h *Host) Serve(ctx context.Context, ch transport.Channel) error {
	logger.ContextKV(ctx, xlog.DEBUG, "status", "serving", "tools", h.registry.Len())
	for {
		frame, err := ch.Receive(ctx)
		if err != nil {
			if transport.IsClosed(err) {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "channel_closed")
				return nil
			}
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return err
		}

		reply := h.HandleMessage(ctx, frame)
		if reply == nil {
			continue
		}
		if err = ch.Send(ctx, reply); err != nil {
			if transport.IsClosed(err) {
				return nil
			}
			logger.ContextKV(ctx, xlog.ERROR, "status", "send_failed", "err", err.Error())
			return err
		}
	}
}

// HandleMessage handles a single request frame and returns the response frame,
// or nil for notifications.
func (h *Host) HandleMessage(ctx context.Context, frame []byte) []byte {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "parse_error",
			"frame", slices.StringUpto(string(frame), 128),
			"err", err.Error())
		return protocol.EncodeError(nil, protocol.CodeParseError, err.Error())
	}

	if req.IsNotification() {
		logger.ContextKV(ctx, xlog.DEBUG, "status", "notification", "method", req.Method)
		return nil
	}

	var result any
	switch req.Method {
	case protocol.MethodInitialize:
		result = &protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			ServerInfo:      h.info,
			Capabilities: map[string]any{
				"tools": map[string]any{},
			},
		}
	case protocol.MethodToolsList:
		result, err = h.listTools()
		if err != nil {
			return protocol.EncodeError(req.ID, protocol.CodeInternalError, err.Error())
		}
	case protocol.MethodToolsCall:
		var params protocol.CallToolParams
		if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil || params.Name == "" {
			return protocol.EncodeError(req.ID, protocol.CodeInvalidParams, "tools/call requires a tool name")
		}
		result, err = protocol.NewCallToolResult(h.registry.Invoke(ctx, params.Name, params.Arguments))
		if err != nil {
			// the payload could not be encoded, report it as a handler failure
			logger.ContextKV(ctx, xlog.ERROR, "status", "encode_failed", "tool", params.Name, "err", err.Error())
			result = &protocol.CallToolResult{
				Status: protocol.StatusError,
				Error: &protocol.ToolError{
					Kind:    mcp.KindHandlerError,
					Message: err.Error(),
				},
			}
		}
	default:
		logger.ContextKV(ctx, xlog.DEBUG, "status", "method_not_found", "method", req.Method)
		return protocol.EncodeError(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method)
	}

	js, err := protocol.EncodeResult(req.ID, result)
	if err != nil {
		return protocol.EncodeError(req.ID, protocol.CodeInternalError, err.Error())
	}
	return js
}

func (h *Host) listTools() (*protocol.ListToolsResult, error) {
	specs := h.registry.List()
	res := &protocol.ListToolsResult{
		Tools: make([]protocol.ToolInfo, len(specs)),
	}
	for i := range specs {
		js, err := schema.ToolJSON(&specs[i])
		if err != nil {
			return nil, err
		}
		res.Tools[i] = protocol.ToolInfo{
			ToolSpec:    specs[i],
			InputSchema: js,
		}
	}
	return res, nil
}
