// Package schema renders tool parameter specs as JSON Schema,
// for the tools/list wire format and for LLM function definitions.
package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ForTool returns the parameters object schema of the tool.
// Properties keep the declaration order of the params.
func ForTool(spec *mcp.ToolSpec) *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	var required []string

	for _, p := range spec.Params {
		ps := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Default:     p.Default,
		}
		switch p.Type {
		case mcp.TypeArray:
			ps.Items = jsonschema.TrueSchema
		case mcp.TypeObject:
			ps.AdditionalProperties = jsonschema.TrueSchema
		}
		props.Set(p.Name, ps)
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Params returns the params described by an object schema, in the order
// of its properties. Types other than the JSON Schema primitives are
// reported as object.
func Params(s *jsonschema.Schema) []mcp.ParamSpec {
	if s == nil || s.Properties == nil {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	props := s.Properties
	params := make([]mcp.ParamSpec, 0, props.Len())
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		p := mcp.ParamSpec{
			Name:     pair.Key,
			Type:     mcp.TypeObject,
			Required: required[pair.Key],
		}
		if ps := pair.Value; ps != nil {
			p.Description = ps.Description
			p.Default = ps.Default
			if t := mcp.ParamType(ps.Type); t.IsValid() {
				p.Type = t
			}
		}
		params = append(params, p)
	}
	return params
}

// ToolJSON returns the JSON encoded parameters schema of the tool.
func ToolJSON(spec *mcp.ToolSpec) (json.RawMessage, error) {
	js, err := json.Marshal(ForTool(spec))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode schema for %q", spec.Name)
	}
	return js, nil
}

// ToMap converts the schema to a generic map, as expected by SDKs that take
// the parameters as free-form JSON.
func ToMap(s *jsonschema.Schema) (map[string]any, error) {
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m map[string]any
	if err = json.Unmarshal(js, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

// FromAny creates a json schema from any JSON-compatible value.
func FromAny(t any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(t)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	schema := &jsonschema.Schema{}
	if err = json.Unmarshal(js, schema); err != nil {
		return nil, errors.WithStack(err)
	}
	return schema, nil
}
