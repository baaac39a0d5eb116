package mcp

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// IsValid returns true for the supported parameter types.
func (t ParamType) IsValid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// ToolSpec describes a tool exposed by the host.
// Params are ordered as declared at registration.
type ToolSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Params      []ParamSpec `json:"params" yaml:"params"`
}

// Param returns the parameter spec by name.
func (s *ToolSpec) Param(name string) (*ParamSpec, bool) {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i], true
		}
	}
	return nil, false
}

// Validate checks the spec is well formed.
func (s *ToolSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.WithMessage(ErrInvalidToolSpec, "name is required")
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return errors.WithMessagef(ErrInvalidToolSpec, "tool %q: parameter name is required", s.Name)
		}
		if seen[p.Name] {
			return errors.WithMessagef(ErrInvalidToolSpec, "tool %q: duplicate parameter %q", s.Name, p.Name)
		}
		if !p.Type.IsValid() {
			return errors.WithMessagef(ErrInvalidToolSpec, "tool %q: parameter %q has unsupported type %q", s.Name, p.Name, p.Type)
		}
		seen[p.Name] = true
	}
	return nil
}

// ToolCallRequest is a single request to invoke a tool.
type ToolCallRequest struct {
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ToolCallResult is either a success payload or a Failure.
type ToolCallResult struct {
	Value   any      `json:"value,omitempty" yaml:"value,omitempty"`
	Failure *Failure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Success returns a successful result.
func Success(value any) *ToolCallResult {
	return &ToolCallResult{Value: value}
}

// Fail returns a failed result.
func Fail(kind ErrorKind, format string, args ...any) *ToolCallResult {
	return &ToolCallResult{Failure: NewFailure(kind, format, args...)}
}

// FailWith returns a failed result for the given failure.
func FailWith(f *Failure) *ToolCallResult {
	return &ToolCallResult{Failure: f}
}

// IsSuccess returns true if the call succeeded.
func (r *ToolCallResult) IsSuccess() bool {
	return r != nil && r.Failure == nil
}

// Kind returns the failure kind, or empty string on success.
func (r *ToolCallResult) Kind() ErrorKind {
	if r == nil || r.Failure == nil {
		return ""
	}
	return r.Failure.Kind
}

// Err returns the Failure as error, or nil on success.
func (r *ToolCallResult) Err() error {
	if r == nil || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Decode converts the success payload into v.
func (r *ToolCallResult) Decode(v any) error {
	if r.Failure != nil {
		return r.Failure
	}
	js, err := json.Marshal(r.Value)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(json.Unmarshal(js, v))
}

// String returns the textual form fed back to the decision engine:
// the JSON payload on success, or the failure description.
func (r *ToolCallResult) String() string {
	if r == nil {
		return ""
	}
	if r.Failure != nil {
		return "error: " + r.Failure.Error()
	}
	if s, ok := r.Value.(string); ok {
		return s
	}
	js, err := json.Marshal(r.Value)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(js)
}
