// Package prompts renders prompt templates for the decision engines.
package prompts

import (
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// ErrMissingInput is returned when a declared input variable is not provided.
var ErrMissingInput = errors.New("missing prompt input")

// Template is a Go text template with the sprig function set.
type Template struct {
	text           string
	inputVariables []string
	tmpl           *template.Template
}

// NewTemplate parses the template text.
// The input variables must be provided on every Format call.
func NewTemplate(name, text string, inputVariables ...string) (*Template, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse prompt template %q", name)
	}
	return &Template{
		text:           text,
		inputVariables: inputVariables,
		tmpl:           tmpl,
	}, nil
}

// MustTemplate is like NewTemplate but panics on a parse error.
func MustTemplate(name, text string, inputVariables ...string) *Template {
	t, err := NewTemplate(name, text, inputVariables...)
	if err != nil {
		panic(err)
	}
	return t
}

// GetInputVariables returns the required input variables.
func (t *Template) GetInputVariables() []string {
	return slices.Clone(t.inputVariables)
}

// Format renders the template with the inputs.
func (t *Template) Format(inputs map[string]any) (string, error) {
	for _, v := range t.inputVariables {
		if _, ok := inputs[v]; !ok {
			return "", errors.WithMessagef(ErrMissingInput, "%s: %q", t.tmpl.Name(), v)
		}
	}
	var buf strings.Builder
	if err := t.tmpl.Execute(&buf, inputs); err != nil {
		return "", errors.Wrapf(err, "failed to render prompt template %q", t.tmpl.Name())
	}
	return buf.String(), nil
}

// MergeInputs returns a new map with the values of all maps,
// later maps win.
func MergeInputs(maps ...map[string]any) map[string]any {
	merged := map[string]any{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
