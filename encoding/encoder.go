// Package encoding converts values to and from the formats accepted on the
// command line and printed by it.
package encoding

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/devassist/encoding/json"
	textenc "github.com/effective-security/devassist/encoding/text"
	tomlenc "github.com/effective-security/devassist/encoding/toml"
	yamlenc "github.com/effective-security/devassist/encoding/yaml"
	"github.com/effective-security/devassist/pkg/llmutils"
)

// ErrUnsupportedFormat is returned for an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported format")

type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
}

type Validator interface {
	Validate(any) error
}

type Format = string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatText Format = "text"
)

// FormatDefault is the default output format.
// Allow to override in apps
var FormatDefault = FormatText

var (
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*textenc.Encoder)(nil)

	_ Validator = (*jsonenc.Encoder)(nil)
	_ Validator = (*yamlenc.Encoder)(nil)
	_ Validator = (*tomlenc.Encoder)(nil)
)

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}
}

// NewEncoder returns the encoder for the format.
func NewEncoder(format Format) (Encoder, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return jsonenc.NewEncoder(), nil
	case FormatYAML, "yml":
		return yamlenc.NewEncoder(), nil
	case FormatTOML:
		return tomlenc.NewEncoder(), nil
	case FormatText, "":
		return textenc.NewEncoder(), nil
	default:
		return nil, errors.WithMessagef(ErrUnsupportedFormat, "%q", format)
	}
}

// FormatFromPath returns the format by the file extension,
// or JSON when the extension is not known.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".txt":
		return FormatText
	default:
		return FormatJSON
	}
}

// Encode writes v to w in the format, ending with a new line.
func Encode(w io.Writer, format Format, v any) error {
	enc, err := NewEncoder(format)
	if err != nil {
		return err
	}
	bs, err := enc.Marshal(v)
	if err != nil {
		return errors.WithMessagef(err, "failed to encode %s", format)
	}
	_, err = io.WriteString(w, llmutils.EnsureEndsWithNewline(string(bs)))
	return errors.WithStack(err)
}

// Decode parses data in the format into v.
// Structs are validated with their validate tags.
func Decode(data []byte, format Format, v any) error {
	enc, err := NewEncoder(format)
	if err != nil {
		return err
	}
	if err = enc.Unmarshal(data, v); err != nil {
		return errors.WithMessagef(err, "failed to decode %s", format)
	}
	if validator, ok := enc.(Validator); ok {
		if err = validator.Validate(v); err != nil {
			return errors.WithMessage(err, "failed to validate")
		}
	}
	return nil
}
