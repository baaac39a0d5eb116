package yaml

import (
	"bytes"

	"github.com/effective-security/devassist/encoding/internal/validate"
	"github.com/effective-security/devassist/pkg/llmutils"
	"gopkg.in/yaml.v3"
)

type Encoder struct {
	indent int
}

func NewEncoder() *Encoder {
	return &Encoder{indent: 2}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(e.indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	return yaml.Unmarshal(data, ret)
}

func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}
