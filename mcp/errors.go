package mcp

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrDuplicateToolName is returned by Register when the name is taken.
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrInvalidToolSpec is returned by Register for malformed specs.
	ErrInvalidToolSpec = errors.New("invalid tool spec")
	// ErrConnect is returned when the session can not be established.
	ErrConnect = errors.New("connect error")
	// ErrProtocol is returned when the session is faulted by a malformed exchange.
	ErrProtocol = errors.New("protocol error")
	// ErrSessionNotReady is returned when a call is attempted outside of the Ready state.
	ErrSessionNotReady = errors.New("session is not ready")
	// ErrMaxIterationsExceeded is returned when the orchestration loop hits its bound.
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	KindUnknownTool     ErrorKind = "UnknownTool"
	KindInvalidArgument ErrorKind = "InvalidArgument"
	KindHandlerError    ErrorKind = "HandlerError"
	KindTimeout         ErrorKind = "Timeout"
	KindProtocolError   ErrorKind = "ProtocolError"
)

// IsValid returns true for the known kinds.
func (k ErrorKind) IsValid() bool {
	switch k {
	case KindUnknownTool, KindInvalidArgument, KindHandlerError, KindTimeout, KindProtocolError:
		return true
	}
	return false
}

// Recoverable returns true if the failure is reported back to the engine as data
// and the session remains usable.
func (k ErrorKind) Recoverable() bool {
	return k != KindProtocolError
}

// Failure describes a failed tool call.
// It implements error, so handlers may return it to choose the reported kind.
type Failure struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
	// Param is the offending parameter for InvalidArgument failures.
	Param string `json:"param,omitempty" yaml:"param,omitempty"`
}

func (f *Failure) Error() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: parameter %q: %s", f.Kind, f.Param, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure returns a Failure of the given kind.
func NewFailure(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidArgument returns an InvalidArgument failure naming the parameter.
func InvalidArgument(param string, format string, args ...any) *Failure {
	return &Failure{
		Kind:    KindInvalidArgument,
		Param:   param,
		Message: fmt.Sprintf(format, args...),
	}
}

// AsFailure extracts a Failure from the error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
