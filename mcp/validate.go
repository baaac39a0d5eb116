package mcp

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
)

// ValidateArguments checks args against the spec and returns a normalized copy
// with defaults applied for absent optional parameters.
// Integers are normalized to int64 and numbers to float64.
func ValidateArguments(spec *ToolSpec, args map[string]any) (map[string]any, *Failure) {
	res := make(map[string]any, len(spec.Params))

	// report unknown parameters in a stable order
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := spec.Param(name); !ok {
			return nil, InvalidArgument(name, "unknown parameter for tool %q", spec.Name)
		}
	}

	for _, p := range spec.Params {
		val, ok := args[p.Name]
		if !ok || val == nil {
			if p.Required {
				return nil, InvalidArgument(p.Name, "missing required value")
			}
			if p.Default != nil {
				if nv, ok := normalize(p.Type, p.Default); ok {
					res[p.Name] = nv
				} else {
					res[p.Name] = p.Default
				}
			}
			continue
		}
		nv, ok := normalize(p.Type, val)
		if !ok {
			return nil, InvalidArgument(p.Name, "expected %s, got %s", p.Type, typeName(val))
		}
		res[p.Name] = nv
	}
	return res, nil
}

func normalize(typ ParamType, val any) (any, bool) {
	switch typ {
	case TypeString:
		s, ok := val.(string)
		return s, ok
	case TypeBoolean:
		b, ok := val.(bool)
		return b, ok
	case TypeInteger:
		return toInt64(val)
	case TypeNumber:
		return toFloat64(val)
	case TypeArray:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return val, true
		}
	case TypeObject:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			return val, true
		}
		if rv.Kind() == reflect.Struct || (rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct) {
			return val, true
		}
	}
	return nil, false
}

func toInt64(val any) (any, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case float32:
		f := float64(v)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	}
	return nil, false
}

func toFloat64(val any) (any, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return nil, false
}

func typeName(val any) string {
	switch val.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(val).String()
}
