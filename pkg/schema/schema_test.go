package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForTool(t *testing.T) {
	t.Parallel()

	spec := &mcp.ToolSpec{
		Name: "generate_release_notes",
		Params: []mcp.ParamSpec{
			{Name: "since", Type: mcp.TypeString, Description: "tag or revision to start from"},
			{Name: "max_commits", Type: mcp.TypeInteger, Default: 10},
			{Name: "labels", Type: mcp.TypeArray},
			{Name: "keyword", Type: mcp.TypeString, Required: true},
		},
	}

	js, err := schema.ToolJSON(spec)
	require.NoError(t, err)
	assert.Equal(t,
		`{"properties":{"since":{"type":"string","description":"tag or revision to start from"},"max_commits":{"type":"integer","default":10},"labels":{"items":true,"type":"array"},"keyword":{"type":"string"}},"type":"object","required":["keyword"]}`,
		string(js))

	m, err := schema.ToMap(schema.ForTool(spec))
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, []any{"keyword"}, m["required"])

	empty, err := schema.ToolJSON(&mcp.ToolSpec{Name: "run_tests"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(empty))
}

func TestParams(t *testing.T) {
	t.Parallel()

	spec := &mcp.ToolSpec{
		Name: "search_repo",
		Params: []mcp.ParamSpec{
			{Name: "keyword", Type: mcp.TypeString, Required: true, Description: "text to find"},
			{Name: "glob", Type: mcp.TypeString},
			{Name: "limit", Type: mcp.TypeInteger, Default: float64(100)},
		},
	}
	js, err := schema.ToolJSON(spec)
	require.NoError(t, err)

	s, err := schema.FromAny(json.RawMessage(js))
	require.NoError(t, err)
	if diff := cmp.Diff(spec.Params, schema.Params(s)); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	s, err = schema.FromAny(map[string]any{
		"type":       "object",
		"properties": map[string]any{"filter": map[string]any{"type": "null"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []mcp.ParamSpec{{Name: "filter", Type: mcp.TypeObject}}, schema.Params(s))

	assert.Nil(t, schema.Params(nil))
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	s, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "object", s.Type)
	q, ok := s.Properties.Get("query")
	require.True(t, ok)
	assert.Equal(t, "string", q.Type)

	_, err = schema.FromAny(func() {})
	assert.Error(t, err)

	js, _ := json.Marshal(s)
	assert.Contains(t, string(js), `"query"`)
}
