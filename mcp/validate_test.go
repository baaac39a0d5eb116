package mcp_test

import (
	"testing"

	"github.com/effective-security/devassist/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchSpec = mcp.ToolSpec{
	Name:        "search_repo",
	Description: "search",
	Params: []mcp.ParamSpec{
		{Name: "keyword", Type: mcp.TypeString, Required: true},
		{Name: "limit", Type: mcp.TypeInteger, Default: int64(100)},
		{Name: "ratio", Type: mcp.TypeNumber},
		{Name: "exact", Type: mcp.TypeBoolean},
		{Name: "paths", Type: mcp.TypeArray},
		{Name: "opts", Type: mcp.TypeObject},
	},
}

func TestValidateArguments(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		args, f := mcp.ValidateArguments(&searchSpec, map[string]any{"keyword": "TODO"})
		require.Nil(t, f)
		assert.Equal(t, map[string]any{"keyword": "TODO", "limit": int64(100)}, args)
	})

	t.Run("normalize", func(t *testing.T) {
		args, f := mcp.ValidateArguments(&searchSpec, map[string]any{
			"keyword": "x",
			"limit":   float64(3),
			"ratio":   1,
			"exact":   true,
			"paths":   []any{"a"},
			"opts":    map[string]any{"k": "v"},
		})
		require.Nil(t, f)
		assert.Equal(t, int64(3), args["limit"])
		assert.Equal(t, float64(1), args["ratio"])
		assert.Equal(t, true, args["exact"])
	})

	tcs := []struct {
		name  string
		args  map[string]any
		param string
	}{
		{name: "missing", args: map[string]any{}, param: "keyword"},
		{name: "null", args: map[string]any{"keyword": nil}, param: "keyword"},
		{name: "wrong type", args: map[string]any{"keyword": 42.0}, param: "keyword"},
		{name: "fraction", args: map[string]any{"keyword": "x", "limit": 1.5}, param: "limit"},
		{name: "bool", args: map[string]any{"keyword": "x", "exact": "yes"}, param: "exact"},
		{name: "array", args: map[string]any{"keyword": "x", "paths": "a"}, param: "paths"},
		{name: "object", args: map[string]any{"keyword": "x", "opts": []any{}}, param: "opts"},
		{name: "unknown", args: map[string]any{"keyword": "x", "bogus": 1}, param: "bogus"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, f := mcp.ValidateArguments(&searchSpec, tc.args)
			require.NotNil(t, f)
			assert.Equal(t, mcp.KindInvalidArgument, f.Kind)
			assert.Equal(t, tc.param, f.Param)
			assert.Contains(t, f.Error(), tc.param)
		})
	}
}

func TestToolSpec_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, searchSpec.Validate())

	bad := []mcp.ToolSpec{
		{Name: " "},
		{Name: "x", Params: []mcp.ParamSpec{{Name: "", Type: mcp.TypeString}}},
		{Name: "x", Params: []mcp.ParamSpec{{Name: "a", Type: mcp.TypeString}, {Name: "a", Type: mcp.TypeString}}},
		{Name: "x", Params: []mcp.ParamSpec{{Name: "a", Type: "date"}}},
	}
	for _, s := range bad {
		assert.ErrorIs(t, s.Validate(), mcp.ErrInvalidToolSpec)
	}

	p, ok := searchSpec.Param("limit")
	require.True(t, ok)
	assert.Equal(t, mcp.TypeInteger, p.Type)
	_, ok = searchSpec.Param("none")
	assert.False(t, ok)
}

func TestToolCallResult(t *testing.T) {
	t.Parallel()

	ok := mcp.Success(map[string]any{"passed": 5, "failed": 1})
	assert.True(t, ok.IsSuccess())
	assert.NoError(t, ok.Err())
	assert.Empty(t, ok.Kind())
	assert.Equal(t, `{"failed":1,"passed":5}`, ok.String())

	var v struct {
		Passed int `json:"passed"`
		Failed int `json:"failed"`
	}
	require.NoError(t, ok.Decode(&v))
	assert.Equal(t, 5, v.Passed)
	assert.Equal(t, 1, v.Failed)

	assert.Equal(t, "done", mcp.Success("done").String())

	failed := mcp.Fail(mcp.KindTimeout, "tool %q did not respond", "run_tests")
	assert.False(t, failed.IsSuccess())
	assert.Equal(t, mcp.KindTimeout, failed.Kind())
	assert.Equal(t, `error: Timeout: tool "run_tests" did not respond`, failed.String())
	assert.Error(t, failed.Decode(&v))

	f, isFailure := mcp.AsFailure(failed.Err())
	require.True(t, isFailure)
	assert.Equal(t, mcp.KindTimeout, f.Kind)

	assert.True(t, mcp.KindHandlerError.Recoverable())
	assert.False(t, mcp.KindProtocolError.Recoverable())
	assert.False(t, mcp.ErrorKind("Other").IsValid())
}
