// Package protocol implements the JSON-RPC 2.0 wire format spoken between
// the session coordinator and the tool host.
//
// Methods:
//
//   - initialize: handshake, returns the server info
//   - notifications/initialized: sent by the client after initialize, no reply
//   - tools/list: returns the registered tools in registration order
//   - tools/call: invokes a tool, the result carries either a payload or a
//     failure kind with message
//
// Decoding is strict: frames that are not valid JSON-RPC 2.0 messages are
// reported with ErrMalformed, which the session treats as a protocol error.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
)

// Version is the JSON-RPC version.
const Version = "2.0"

// ProtocolVersion is reported in the initialize handshake.
const ProtocolVersion = "2025-03-26"

// Methods
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Status values of CallToolResult
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// ErrMalformed is returned for frames that do not decode as expected.
	ErrMalformed = errors.New("malformed message")
	// ErrNotification is returned by DecodeResponse for server initiated notifications.
	ErrNotification = errors.New("unexpected notification")
)

// Request is a JSON-RPC request, or a notification when ID is empty.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if no reply is expected.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasID returns true if the response correlates to the request id.
func (r *Response) HasID(id uint64) bool {
	return bytes.Equal(bytes.TrimSpace(r.ID), FormatID(id))
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// FormatID returns the wire form of a request id.
func FormatID(id uint64) json.RawMessage {
	return json.RawMessage(strconv.FormatUint(id, 10))
}

// NewRequest encodes a request.
func NewRequest(id uint64, method string, params any) ([]byte, error) {
	return encodeRequest(FormatID(id), method, params)
}

// NewNotification encodes a notification.
func NewNotification(method string, params any) ([]byte, error) {
	return encodeRequest(nil, method, params)
}

func encodeRequest(id json.RawMessage, method string, params any) ([]byte, error) {
	req := Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
	}
	if params != nil {
		js, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s params", method)
		}
		req.Params = js
	}
	return json.Marshal(req)
}

// EncodeResult encodes a success response.
func EncodeResult(id json.RawMessage, result any) ([]byte, error) {
	js, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return json.Marshal(Response{
		JSONRPC: Version,
		ID:      idOrNull(id),
		Result:  js,
	})
}

// EncodeError encodes an error response.
func EncodeError(id json.RawMessage, code int, message string) []byte {
	js, _ := json.Marshal(Response{
		JSONRPC: Version,
		ID:      idOrNull(id),
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
	return js
}

var null = json.RawMessage("null")

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return null
	}
	return id
}

// envelope is used to classify inbound frames.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

func decodeEnvelope(frame []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid JSON"), ErrMalformed)
	}
	if env.JSONRPC != Version {
		return nil, errors.WithMessagef(ErrMalformed, "unsupported jsonrpc version %q", env.JSONRPC)
	}
	return &env, nil
}

// DecodeRequest decodes a request or notification frame.
func DecodeRequest(frame []byte) (*Request, error) {
	env, err := decodeEnvelope(frame)
	if err != nil {
		return nil, err
	}
	if env.Method == "" {
		return nil, errors.WithMessage(ErrMalformed, "method is required")
	}
	id := env.ID
	if bytes.Equal(bytes.TrimSpace(id), null) {
		id = nil
	}
	return &Request{
		JSONRPC: env.JSONRPC,
		ID:      id,
		Method:  env.Method,
		Params:  env.Params,
	}, nil
}

// DecodeResponse decodes a response frame. Exactly one of result or error
// must be present.
func DecodeResponse(frame []byte) (*Response, error) {
	env, err := decodeEnvelope(frame)
	if err != nil {
		return nil, err
	}
	if env.Method != "" {
		if len(env.ID) == 0 {
			return nil, errors.WithMessage(ErrNotification, env.Method)
		}
		return nil, errors.WithMessagef(ErrMalformed, "unexpected request %q", env.Method)
	}
	if len(env.ID) == 0 {
		return nil, errors.WithMessage(ErrMalformed, "id is required")
	}
	hasResult := len(env.Result) > 0 && !bytes.Equal(env.Result, null)
	if hasResult == (env.Error != nil) {
		return nil, errors.WithMessage(ErrMalformed, "exactly one of result or error is required")
	}
	return &Response{
		JSONRPC: env.JSONRPC,
		ID:      env.ID,
		Result:  env.Result,
		Error:   env.Error,
	}, nil
}

// DecodeResult decodes the response result into v.
func (r *Response) DecodeResult(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid result"), ErrMalformed)
	}
	return nil
}

// Implementation identifies a client or server.
type Implementation struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// InitializeParams is sent by the client.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is returned by the host.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

// ToolInfo is a tool as listed on the wire. InputSchema is the JSON Schema
// rendering of Params, provided for clients that do not read Params.
type ToolInfo struct {
	mcp.ToolSpec
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsResult is the tools/list result.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams is the tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolError is the failure carried by a CallToolResult.
type ToolError struct {
	Kind    mcp.ErrorKind `json:"kind"`
	Message string        `json:"message"`
	Param   string        `json:"param,omitempty"`
}

// CallToolResult is the tools/call result.
type CallToolResult struct {
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ToolError      `json:"error,omitempty"`
}

// NewCallToolResult converts a tool call result to its wire form.
func NewCallToolResult(r *mcp.ToolCallResult) (*CallToolResult, error) {
	if r.Failure != nil {
		return &CallToolResult{
			Status: StatusError,
			Error: &ToolError{
				Kind:    r.Failure.Kind,
				Message: r.Failure.Message,
				Param:   r.Failure.Param,
			},
		}, nil
	}
	js, err := json.Marshal(r.Value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	return &CallToolResult{
		Status:  StatusSuccess,
		Payload: js,
	}, nil
}

// ToolCallResult validates and converts the wire form back.
func (r *CallToolResult) ToolCallResult() (*mcp.ToolCallResult, error) {
	switch r.Status {
	case StatusSuccess:
		if r.Error != nil {
			return nil, errors.WithMessage(ErrMalformed, "success result carries an error")
		}
		var v any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &v); err != nil {
				return nil, errors.Mark(errors.Wrap(err, "invalid payload"), ErrMalformed)
			}
		}
		return mcp.Success(v), nil
	case StatusError:
		if r.Error == nil || !r.Error.Kind.IsValid() {
			return nil, errors.WithMessage(ErrMalformed, "error result requires a known kind")
		}
		// timeouts and protocol errors are raised by the caller, never by the host
		if r.Error.Kind == mcp.KindTimeout || r.Error.Kind == mcp.KindProtocolError {
			return nil, errors.WithMessagef(ErrMalformed, "host reported %s", r.Error.Kind)
		}
		return mcp.FailWith(&mcp.Failure{
			Kind:    r.Error.Kind,
			Message: r.Error.Message,
			Param:   r.Error.Param,
		}), nil
	default:
		return nil, errors.WithMessagef(ErrMalformed, "unknown status %q", r.Status)
	}
}
