package text

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/pkg/llmutils"
)

// Encoder prints values as plain text.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Marshal prints strings and Stringers as is, and other values as YAML.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	default:
		return []byte(llmutils.ToYAML(v)), nil
	}
}

// Unmarshal accepts only string targets.
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	switch t := ret.(type) {
	case *string:
		*t = strings.TrimSpace(string(bs))
		return nil
	default:
		return errors.Errorf("text: unsupported target %T", ret)
	}
}
