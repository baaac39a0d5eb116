package tools

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/llmutils"
	"github.com/effective-security/devassist/toolhost"
)

// ITool is a tool served by the host.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Spec returns the tool spec as listed by the host.
	Spec() mcp.ToolSpec
	// Call executes the tool with validated arguments.
	Call(context.Context, toolhost.Args) (any, error)
}

// Tool is a tool with typed request and result.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// Register registers the tools in order.
func Register(reg *toolhost.Registry, list ...ITool) error {
	for _, t := range list {
		if err := reg.Register(t.Spec(), t.Call); err != nil {
			return err
		}
	}
	return nil
}

// DecodeArgs decodes the arguments into the typed request.
func DecodeArgs(args toolhost.Args, req any) error {
	js, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(err, "failed to marshal input")
	}
	if err = json.Unmarshal(js, req); err != nil {
		return errors.Wrap(err, "failed to unmarshal input")
	}
	return nil
}

type toolDescription struct {
	Name        string          `json:"Name" yaml:"Name"`
	Description string          `json:"Description" yaml:"Description"`
	Params      []mcp.ParamSpec `json:"Params,omitempty" yaml:"Params,omitempty"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the JSON description of the tools, in backticks.
func GetDescriptions(list ...mcp.ToolSpec) string {
	var d toolsDescription
	for _, spec := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        spec.Name,
			Description: spec.Description,
			Params:      spec.Params,
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
