package json

import (
	"bytes"
	"encoding/json"

	"github.com/effective-security/devassist/encoding/internal/validate"
	"github.com/effective-security/devassist/pkg/llmutils"
)

type Encoder struct {
	indent string
}

func NewEncoder() *Encoder {
	return &Encoder{indent: "  "}
}

// WithIndent sets the indentation, empty for compact output.
func (e *Encoder) WithIndent(indent string) *Encoder {
	e.indent = indent
	return e
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	if e.indent == "" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", e.indent)
}

// Unmarshal decodes JSON, ignoring text around the payload.
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.CleanJSON(bytes.TrimSpace(bs))
	return json.Unmarshal(data, ret)
}

func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}
