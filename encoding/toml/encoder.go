package toml

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/encoding/internal/validate"
	"github.com/effective-security/devassist/pkg/llmutils"
)

// ValueKey holds a value that is not a table at the top level.
const ValueKey = "value"

type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Marshal encodes v as a TOML document.
// Keys follow the json tags of v; a value that is not a table
// is stored under ValueKey.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	doc, err := toTable(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err = enc.Encode(doc); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	return toml.Unmarshal(data, ret)
}

func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func toTable(v any) (map[string]any, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var generic any
	if err = json.Unmarshal(js, &generic); err != nil {
		return nil, errors.WithStack(err)
	}
	generic = normalize(generic)
	if m, ok := generic.(map[string]any); ok {
		return m, nil
	}
	if generic == nil {
		return map[string]any{}, nil
	}
	return map[string]any{ValueKey: generic}, nil
}

// normalize turns integral numbers to int64 and drops nulls,
// which TOML can not express.
func normalize(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = normalize(val)
		}
		return t
	case []any:
		list := t[:0]
		for _, val := range t {
			if val != nil {
				list = append(list, normalize(val))
			}
		}
		return list
	default:
		return v
	}
}
